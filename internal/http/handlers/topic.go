package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/talkco-backend/internal/content"
	"github.com/yungbote/talkco-backend/internal/http/response"
)

type TopicHandler struct {
	catalog *content.Catalog
}

func NewTopicHandler(catalog *content.Catalog) *TopicHandler {
	return &TopicHandler{catalog: catalog}
}

// GET /topics
func (h *TopicHandler) List(c *gin.Context) {
	response.RespondOK(c, gin.H{
		"topics":           h.catalog.Topics,
		"issue_dimensions": h.catalog.Dimensions,
	})
}
