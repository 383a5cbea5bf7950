package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/talkco-backend/internal/conversation"
	"github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/http/response"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
	"github.com/yungbote/talkco-backend/internal/services"
)

// MaxAudioBytes bounds a single uploaded utterance.
const MaxAudioBytes = 25 << 20

type SessionService interface {
	Create(ctx context.Context, req services.CreateSessionRequest) (*services.CreatedSession, error)
	Start(ctx context.Context, id uuid.UUID) (<-chan conversation.OutputItem, error)
	ChatAudio(ctx context.Context, id uuid.UUID, audio []byte) (<-chan conversation.OutputItem, error)
	ChatText(ctx context.Context, id uuid.UUID, text string) (<-chan conversation.OutputItem, error)
	End(ctx context.Context, id uuid.UUID) (*services.EndResult, error)
	Finalize(ctx context.Context, id uuid.UUID) (*services.EndResult, error)
	Review(ctx context.Context, id uuid.UUID) (*services.ReviewView, error)
	CreateCorrection(ctx context.Context, id uuid.UUID, segmentID uint, message string) (*practice.Correction, error)
	Status(ctx context.Context, id uuid.UUID) (*services.StatusView, error)
}

type SessionHandler struct {
	log *logger.Logger
	svc SessionService
}

func NewSessionHandler(log *logger.Logger, svc SessionService) *SessionHandler {
	return &SessionHandler{log: log.With("handler", "SessionHandler"), svc: svc}
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", fmt.Errorf("invalid session id %q", c.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}

// POST /sessions
// body: { "user_id": "...", "mode": "conversation"|"review", "topic_id": "..." }
func (h *SessionHandler) Create(c *gin.Context) {
	var req services.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.RespondCreated(c, out)
}

// POST /sessions/:id/start
func (h *SessionHandler) Start(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	out, err := h.svc.Start(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	h.stream(c, id, out)
}

// POST /sessions/:id/chat
// multipart: audio=<pcm16 mono 24kHz>
func (h *SessionHandler) ChatAudio(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("audio")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_audio", err)
		return
	}
	if fh.Size > MaxAudioBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "audio_too_large", fmt.Errorf("audio exceeds %d bytes", MaxAudioBytes))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_audio", err)
		return
	}
	audio, err := io.ReadAll(io.LimitReader(f, MaxAudioBytes))
	_ = f.Close()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_audio", err)
		return
	}

	out, err := h.svc.ChatAudio(c.Request.Context(), id, audio)
	if err != nil {
		response.FromError(c, err)
		return
	}
	h.stream(c, id, out)
}

// POST /sessions/:id/chat/text
// body: { "text": "..." }
func (h *SessionHandler) ChatText(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.svc.ChatText(c.Request.Context(), id, req.Text)
	if err != nil {
		response.FromError(c, err)
		return
	}
	h.stream(c, id, out)
}

// stream relays a turn as SSE frames. A departed client stops the relay; the turn itself
// runs on.
func (h *SessionHandler) stream(c *gin.Context, id uuid.UUID, items <-chan conversation.OutputItem) {
	flusher, ok := response.StartStream(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			h.log.Debug("Stream client gone", "session_id", id)
			return
		case item, open := <-items:
			if !open {
				return
			}
			if err := response.WriteEvent(c.Writer, string(item.Kind), item.Payload()); err != nil {
				h.log.Debug("Stream write failed", "session_id", id, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// DELETE /sessions/:id
func (h *SessionHandler) End(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	out, err := h.svc.End(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /sessions/:id/end
func (h *SessionHandler) Finalize(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	out, err := h.svc.Finalize(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /sessions/:id/review
func (h *SessionHandler) Review(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	out, err := h.svc.Review(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /sessions/:id/corrections
// body: { "segment_id": 12, "user_message": "..." }
func (h *SessionHandler) CreateCorrection(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req struct {
		SegmentID   uint   `json:"segment_id"`
		UserMessage string `json:"user_message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.SegmentID == 0 {
		response.RespondError(c, http.StatusBadRequest, "missing_segment_id", fmt.Errorf("segment_id is required"))
		return
	}
	out, err := h.svc.CreateCorrection(c.Request.Context(), id, req.SegmentID, req.UserMessage)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.RespondCreated(c, out)
}

// GET /sessions/:id/status
func (h *SessionHandler) Status(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	out, err := h.svc.Status(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.RespondOK(c, out)
}
