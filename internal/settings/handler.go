package settings

import (
	"context"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-events/ticketing/internal/models"
	"github.com/aura-events/ticketing/pkg/response"
	"github.com/aura-events/ticketing/pkg/storage"
)

const maxLogoBytes = 2 << 20

// EventStore is the persistence the handler needs.
type EventStore interface {
	GetEvent(ctx context.Context) (*models.EventSettings, error)
	SaveEvent(ctx context.Context, e *models.EventSettings) error
	SetLogo(ctx context.Context, url string) error
}

// EventRequest is the body for PUT /event-settings/.
type EventRequest struct {
	EventName        string     `json:"event_name" binding:"max=200"`
	EventDescription string     `json:"event_description"`
	Venue            string     `json:"venue" binding:"max=255"`
	StartDate        *time.Time `json:"start_date"`
	EndDate          *time.Time `json:"end_date"`
	LogoURL          *string    `json:"logo_url"`
}

// Handler handles event settings HTTP endpoints.
type Handler struct {
	store     EventStore
	artifacts storage.Store
	logger    *zap.Logger
}

// NewHandler creates a settings handler. artifacts may be nil, which disables logo upload.
func NewHandler(store EventStore, artifacts storage.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, artifacts: artifacts, logger: logger}
}

// Get handles GET /event-settings/.
func (h *Handler) Get(c *gin.Context) {
	e, err := h.store.GetEvent(c.Request.Context())
	if err != nil {
		h.logger.Error("load event settings", zap.Error(err))
		response.Internal(c, "failed to load event settings")
		return
	}
	response.OK(c, e)
}

// Update handles PUT /event-settings/.
func (h *Handler) Update(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		response.ValidationError(c, "invalid event dates", map[string]string{"end_date": "must not be before start_date"})
		return
	}
	ctx := c.Request.Context()
	current, err := h.store.GetEvent(ctx)
	if err != nil {
		h.logger.Error("load event settings", zap.Error(err))
		response.Internal(c, "failed to load event settings")
		return
	}
	next := &models.EventSettings{
		EventName:        strings.TrimSpace(req.EventName),
		EventDescription: strings.TrimSpace(req.EventDescription),
		Venue:            strings.TrimSpace(req.Venue),
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		LogoURL:          current.LogoURL,
	}
	if req.LogoURL != nil {
		next.LogoURL = strings.TrimSpace(*req.LogoURL)
	}
	if err := h.store.SaveEvent(ctx, next); err != nil {
		h.logger.Error("save event settings", zap.Error(err))
		response.Internal(c, "failed to save event settings")
		return
	}
	response.OK(c, next)
}

// UploadLogo handles POST /event-settings/logo/ with a multipart "logo" file.
func (h *Handler) UploadLogo(c *gin.Context) {
	if h.artifacts == nil {
		response.ServiceUnavailable(c, "artifact storage not configured")
		return
	}
	fh, err := c.FormFile("logo")
	if err != nil {
		response.BadRequest(c, "logo file required")
		return
	}
	if fh.Size > maxLogoBytes {
		response.BadRequest(c, "logo too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "cannot read logo")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxLogoBytes+1))
	if err != nil || len(data) > maxLogoBytes {
		response.BadRequest(c, "cannot read logo")
		return
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		response.BadRequest(c, "logo must be an image")
		return
	}

	ctx := c.Request.Context()
	key := storage.LogoKey(time.Now().UTC().Format("20060102150405") + path.Ext(fh.Filename))
	if err := h.artifacts.Put(ctx, key, contentType, data); err != nil {
		h.logger.Error("store event logo", zap.String("key", key), zap.Error(err))
		response.Internal(c, "failed to store logo")
		return
	}
	url := h.artifacts.URL(key)
	if err := h.store.SetLogo(ctx, url); err != nil {
		h.logger.Error("set event logo", zap.Error(err))
		response.Internal(c, "failed to save logo")
		return
	}
	response.OK(c, gin.H{"logo_url": url})
}
