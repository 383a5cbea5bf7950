package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/talkco-backend/internal/data/repos"
	"github.com/yungbote/talkco-backend/internal/domain/learner"
	"github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/observability"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrAlreadyCompleted = errors.New("session already completed")
)

const (
	defaultJobTimeout = 10 * time.Minute
	completeTimeout   = 10 * time.Second
)

// Reviewer is the post-session content generation the orchestrator drives.
type Reviewer interface {
	GenerateMarks(ctx context.Context, sessionID uuid.UUID) (int, error)
	GenerateSessionReview(ctx context.Context, sessionID uuid.UUID, userID string) (*learner.SessionSummary, error)
	GenerateChatSummary(ctx context.Context, sessionID uuid.UUID, userID, topicID string) error
	GenerateReviewSummary(ctx context.Context, sessionID uuid.UUID, userID string) error
}

type ProfileUpdater interface {
	UpdateAfterSession(ctx context.Context, userID string, sessionID uuid.UUID) error
}

// Orchestrator runs everything that happens after a session stops taking turns. Background
// work is tracked so shutdown can wait for it.
type Orchestrator struct {
	log        *logger.Logger
	sessions   repos.SessionRepo
	segments   repos.SegmentRepo
	reviewer   Reviewer
	profiles   ProfileUpdater
	status     *StatusTracker
	metrics    *observability.Metrics
	tracer     trace.Tracer
	jobTimeout time.Duration
	wg         sync.WaitGroup
}

func NewOrchestrator(log *logger.Logger, set repos.Set, reviewer Reviewer, profiles ProfileUpdater, status *StatusTracker, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		log:        log.With("component", "Orchestrator"),
		sessions:   set.Sessions,
		segments:   set.Segments,
		reviewer:   reviewer,
		profiles:   profiles,
		status:     status,
		metrics:    metrics,
		tracer:     otel.Tracer("talkco/lifecycle"),
		jobTimeout: defaultJobTimeout,
	}
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }

// background runs fn detached from the request that triggered it.
func (o *Orchestrator) background(name string, sessionID uuid.UUID, fn func(ctx context.Context)) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.log.Error("Background job panic", "job", name, "session_id", sessionID, "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), o.jobTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// task wraps one finalization step so its error and any panic are logged and returned.
func (o *Orchestrator) task(ctx context.Context, name string, sessionID uuid.UUID, fn func(ctx context.Context) error) func() error {
	return func() (err error) {
		ctx, span := o.tracer.Start(ctx, "lifecycle."+name, trace.WithAttributes(attribute.String("session.id", sessionID.String())))
		defer func() {
			if r := recover(); r != nil {
				err = &panicError{Val: r}
			}
			o.metrics.ObserveFinalizeTask(name, err)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				o.log.Warn("Finalization task failed", "task", name, "session_id", sessionID, "error", err)
			}
			span.End()
		}()
		return fn(ctx)
	}
}

// EndConversation closes out a conversation session: reviewing, then marks in the background.
// Ending a session that already moved past active does nothing.
func (o *Orchestrator) EndConversation(ctx context.Context, sess *practice.Session) error {
	changed, err := o.status.Advance(ctx, sess.ID, sess.UserID, practice.StatusReviewing, true)
	if err != nil {
		return fmt.Errorf("advance to reviewing: %w", err)
	}
	if !changed {
		return nil
	}
	o.background("review", sess.ID, func(ctx context.Context) {
		o.RunReview(ctx, sess.ID)
	})
	return nil
}

// EndReview closes out a review session: ended, then summary and profile in the background.
func (o *Orchestrator) EndReview(ctx context.Context, sess *practice.Session) error {
	changed, err := o.status.Advance(ctx, sess.ID, sess.UserID, practice.StatusEnded, true)
	if err != nil {
		return fmt.Errorf("advance to ended: %w", err)
	}
	if !changed {
		return nil
	}
	o.background("review_finalize", sess.ID, func(ctx context.Context) {
		o.FinalizeReviewSession(ctx, sess.ID, sess.UserID)
	})
	return nil
}

func (o *Orchestrator) RunReview(ctx context.Context, sessionID uuid.UUID) {
	_ = o.task(ctx, "marks", sessionID, func(ctx context.Context) error {
		n, err := o.reviewer.GenerateMarks(ctx, sessionID)
		if err == nil {
			o.log.Info("Marks generated", "session_id", sessionID, "count", n)
		}
		return err
	})()
}

func (o *Orchestrator) FinalizeReviewSession(ctx context.Context, sessionID uuid.UUID, userID string) {
	var g errgroup.Group
	g.Go(o.task(ctx, "review_summary", sessionID, func(ctx context.Context) error {
		return o.reviewer.GenerateReviewSummary(ctx, sessionID, userID)
	}))
	g.Go(o.task(ctx, "profile_update", sessionID, func(ctx context.Context) error {
		return o.profiles.UpdateAfterSession(ctx, userID, sessionID)
	}))
	_ = g.Wait()
}

// Finalize handles an explicit end request. It returns the status the session is now in;
// with segments present that is completing and the work continues in the background.
func (o *Orchestrator) Finalize(ctx context.Context, sessionID uuid.UUID) (practice.Status, error) {
	dbc := dbctx.New(ctx)
	sess, err := o.sessions.GetByID(dbc, sessionID)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", ErrSessionNotFound
	}
	if sess.Status == practice.StatusCompleted {
		return "", ErrAlreadyCompleted
	}
	stampEnd := sess.EndedAt == nil

	n, err := o.segments.CountBySession(dbc, sessionID)
	if err != nil {
		return "", err
	}
	if n == 0 {
		if _, err := o.status.Advance(ctx, sess.ID, sess.UserID, practice.StatusCompleted, stampEnd); err != nil {
			return "", fmt.Errorf("advance to completed: %w", err)
		}
		return practice.StatusCompleted, nil
	}

	changed, err := o.status.Advance(ctx, sess.ID, sess.UserID, practice.StatusCompleting, stampEnd)
	if err != nil {
		return "", fmt.Errorf("advance to completing: %w", err)
	}
	if !changed {
		// Another request already started finalization.
		return practice.StatusCompleting, nil
	}
	o.background("finalize", sess.ID, func(ctx context.Context) {
		o.FinalizeSession(ctx, sess)
	})
	return practice.StatusCompleting, nil
}

// FinalizeSession runs session review, profile update and, for topic sessions, the chat
// summary in parallel. The session ends up completed whatever the tasks do.
func (o *Orchestrator) FinalizeSession(ctx context.Context, sess *practice.Session) {
	ctx, span := o.tracer.Start(ctx, "lifecycle.finalize_session", trace.WithAttributes(
		attribute.String("session.id", sess.ID.String()),
		attribute.String("session.mode", string(sess.Mode)),
	))
	defer span.End()

	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), completeTimeout)
		defer cancel()
		if _, err := o.status.Advance(cctx, sess.ID, sess.UserID, practice.StatusCompleted, false); err != nil {
			o.log.Error("Failed to mark session completed", "session_id", sess.ID, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("Finalization panic", "session_id", sess.ID, "panic", r)
		}
	}()

	var g errgroup.Group
	g.Go(o.task(ctx, "session_review", sess.ID, func(ctx context.Context) error {
		_, err := o.reviewer.GenerateSessionReview(ctx, sess.ID, sess.UserID)
		return err
	}))
	g.Go(o.task(ctx, "profile_update", sess.ID, func(ctx context.Context) error {
		return o.profiles.UpdateAfterSession(ctx, sess.UserID, sess.ID)
	}))
	if sess.TopicID != nil && *sess.TopicID != "" {
		topicID := *sess.TopicID
		g.Go(o.task(ctx, "chat_summary", sess.ID, func(ctx context.Context) error {
			return o.reviewer.GenerateChatSummary(ctx, sess.ID, sess.UserID, topicID)
		}))
	}
	if err := g.Wait(); err != nil {
		o.log.Warn("Finalization finished with errors", "session_id", sess.ID, "error", err)
		return
	}
	o.log.Info("Finalization finished", "session_id", sess.ID)
}

// Wait blocks until every background job has returned or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
