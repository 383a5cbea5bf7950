package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/talkco-backend/internal/http/response"
	"github.com/yungbote/talkco-backend/internal/profile"
)

type ProfileService interface {
	View(ctx context.Context, userID string) (*profile.View, error)
	Evaluate(ctx context.Context, userID string) (*profile.View, error)
}

type ProfileHandler struct {
	svc ProfileService
}

func NewProfileHandler(svc ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func userID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_user_id", fmt.Errorf("user id is required"))
		return "", false
	}
	return id, true
}

// GET /users/:id/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	view, err := h.svc.View(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "load_profile_failed", err)
		return
	}
	response.RespondOK(c, view)
}

// POST /users/:id/evaluate
func (h *ProfileHandler) Evaluate(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	view, err := h.svc.Evaluate(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, http.StatusBadGateway, "evaluate_failed", err)
		return
	}
	response.RespondOK(c, view)
}
