package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/http/response"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
	"github.com/yungbote/talkco-backend/internal/realtime"
	"github.com/yungbote/talkco-backend/internal/services"
)

type StatusService interface {
	Status(ctx context.Context, id uuid.UUID) (*services.StatusView, error)
}

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
	svc StatusService
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, svc StatusService) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub, svc: svc}
}

// GET /sessions/:id/events
// Streams SessionStatusChanged events, starting with the current status, and ends once the
// session is completed.
func (h *RealtimeHandler) SessionEvents(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	client := h.hub.NewSSEClient()
	h.hub.AddChannel(client, realtime.SessionChannel(id))
	defer h.hub.CloseClient(client)

	// Subscribe before reading so no transition slips between the read and the stream.
	st, err := h.svc.Status(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	client.Outbound <- realtime.SSEMessage{
		Channel: realtime.SessionChannel(id),
		Event:   realtime.SSEEventSessionStatus,
		Data:    realtime.SessionStatus{SessionID: st.SessionID, UserID: st.UserID, Status: string(st.Status), At: st.StartedAt},
	}

	h.log.Info("Status stream open", "session_id", id)
	h.hub.ServeHTTP(c.Writer, c.Request, client, func(msg realtime.SSEMessage) bool {
		s, ok := msg.Status()
		return ok && s.Status == string(practice.StatusCompleted)
	})
}
