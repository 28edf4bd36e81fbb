package emaillogs

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aura-events/ticketing/internal/models"
	"github.com/aura-events/ticketing/pkg/response"
)

// Lister loads email history.
type Lister interface {
	ListByParticipant(ctx context.Context, participantID int64) ([]*models.EmailLog, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo Lister
}

// NewHandler creates an email logs handler.
func NewHandler(repo Lister) *Handler {
	return &Handler{repo: repo}
}

// ListByParticipant handles GET /participants/:id/emails/.
func (h *Handler) ListByParticipant(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid participant id")
		return
	}
	logs, err := h.repo.ListByParticipant(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}
