package participants

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-events/ticketing/internal/models"
	"github.com/aura-events/ticketing/pkg/qrcode"
	"github.com/aura-events/ticketing/pkg/response"
)

const maxScanBytes = 5 << 20

// VerifyRequest is the body for POST /verify/. "ticket" is accepted as an alias of "ticket_uuid".
type VerifyRequest struct {
	TicketUUID string `json:"ticket_uuid"`
	Ticket     string `json:"ticket"`
	MarkUsed   bool   `json:"mark_used"`
}

// ToggleRequest is the optional body for POST /toggle-registration/.
type ToggleRequest struct {
	IsOpen *bool `json:"is_open"`
}

// RegistrationResponse is the 201 body of POST /participants/.
type RegistrationResponse struct {
	models.ParticipantView
	Warnings []string `json:"warnings,omitempty"`
}

// Handler handles participant, verification and gate HTTP endpoints.
type Handler struct {
	registry *Registry
	logger   *zap.Logger
}

// NewHandler creates a participants handler.
func NewHandler(registry *Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, logger: logger}
}

func (h *Handler) view(c *gin.Context, p *models.Participant, png []byte) models.ParticipantView {
	if png == nil {
		var err error
		png, err = h.registry.QRImage(c.Request.Context(), p)
		if err != nil {
			h.logger.Warn("qr image unavailable", zap.Int64("participant_id", p.ID), zap.Error(err))
		}
	}
	v := models.ParticipantView{Participant: *p, QRURL: h.registry.QRURL(p)}
	if png != nil {
		b64 := base64.StdEncoding.EncodeToString(png)
		v.QRBase64 = &b64
	}
	return v
}

func (h *Handler) writeError(c *gin.Context, op string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.ValidationError(c, "invalid participant", verr.Fields)
	case errors.Is(err, ErrDuplicateEmail):
		response.ValidationError(c, "invalid participant", map[string]string{"email": "participant with this email already exists."})
	case errors.Is(err, ErrRegistrationClosed):
		response.Forbidden(c, "Registrations are closed.")
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "participant not found")
	case errors.Is(err, ErrNotifierDisabled):
		response.ServiceUnavailable(c, err.Error())
	default:
		h.logger.Error(op, zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

func participantID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid participant id")
		return 0, false
	}
	return id, true
}

// Register handles POST /participants/.
func (h *Handler) Register(c *gin.Context) {
	var req Profile
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.registry.Register(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "register participant", err)
		return
	}
	out := RegistrationResponse{ParticipantView: h.view(c, res.Participant, res.QRPNG)}
	for _, a := range res.Advisories {
		out.Warnings = append(out.Warnings, a.Stage)
	}
	response.Created(c, out)
}

// List handles GET /participants/?used=true|false&search=.
func (h *Handler) List(c *gin.Context) {
	var f Filter
	if raw := c.Query("used"); raw != "" {
		used, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(c, "used must be true or false")
			return
		}
		f.Used = &used
	}
	f.Search = c.Query("search")
	list, err := h.registry.List(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, "list participants", err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /participants/:id/.
func (h *Handler) Get(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	p, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "load participant", err)
		return
	}
	response.OK(c, h.view(c, p, nil))
}

// Update handles PUT /participants/:id/.
func (h *Handler) Update(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	var req Profile
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, advisories, err := h.registry.Update(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, "update participant", err)
		return
	}
	out := RegistrationResponse{ParticipantView: models.ParticipantView{Participant: *p, QRURL: h.registry.QRURL(p)}}
	for _, a := range advisories {
		out.Warnings = append(out.Warnings, a.Stage)
	}
	response.OK(c, out)
}

// Delete handles DELETE /participants/:id/.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	if err := h.registry.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, "delete participant", err)
		return
	}
	response.NoContent(c)
}

// Resend handles POST /participants/:id/resend/.
func (h *Handler) Resend(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	if _, err := h.registry.Resend(c.Request.Context(), id); err != nil {
		h.writeError(c, "resend invitation", err)
		return
	}
	response.OK(c, gin.H{"message": "invitation queued"})
}

// Verify handles POST /verify/.
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.WriteDetail(c, http.StatusBadRequest, "invalid request")
		return
	}
	ticket := req.TicketUUID
	if strings.TrimSpace(ticket) == "" {
		ticket = req.Ticket
	}
	h.verify(c, ticket, req.MarkUsed)
}

// VerifyImage handles POST /verify/image/ with a multipart "image" holding a photographed ticket.
func (h *Handler) VerifyImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		response.WriteDetail(c, http.StatusBadRequest, "image required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.WriteDetail(c, http.StatusBadRequest, "cannot read image")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxScanBytes))
	if err != nil {
		response.WriteDetail(c, http.StatusBadRequest, "cannot read image")
		return
	}
	payload, err := qrcode.Decode(data)
	if err != nil {
		response.WriteDetail(c, http.StatusBadRequest, "no QR code found in image")
		return
	}
	markUsed, _ := strconv.ParseBool(c.DefaultPostForm("mark_used", "false"))
	h.verify(c, payload, markUsed)
}

func (h *Handler) verify(c *gin.Context, ticket string, markUsed bool) {
	res, err := h.registry.Verify(c.Request.Context(), ticket, markUsed)
	if err != nil {
		if errors.Is(err, ErrTicketRequired) {
			response.WriteDetail(c, http.StatusBadRequest, "ticket_uuid required")
			return
		}
		h.logger.Error("verify ticket", zap.Error(err))
		response.WriteDetail(c, http.StatusInternalServerError, "failed to verify ticket")
		return
	}
	switch res.Status {
	case StatusNotFound:
		c.JSON(http.StatusNotFound, gin.H{"valid": false})
	case StatusAlreadyUsed:
		c.JSON(http.StatusOK, gin.H{"valid": false, "already_used": true, "participant": res.Participant})
	default:
		c.JSON(http.StatusOK, gin.H{"valid": true, "participant": h.view(c, res.Participant, nil)})
	}
}

// GateState handles GET /toggle-registration/.
func (h *Handler) GateState(c *gin.Context) {
	g, err := h.registry.GateState(c.Request.Context())
	if err != nil {
		h.logger.Error("read registration gate", zap.Error(err))
		response.WriteDetail(c, http.StatusInternalServerError, "failed to read registration state")
		return
	}
	c.JSON(http.StatusOK, g)
}

// Toggle handles POST /toggle-registration/. A body with is_open sets the gate; anything else flips it.
func (h *Handler) Toggle(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.WriteDetail(c, http.StatusBadRequest, "is_open must be a boolean")
		return
	}
	g, err := h.registry.ToggleRegistration(c.Request.Context(), req.IsOpen)
	if err != nil {
		h.logger.Error("toggle registration gate", zap.Error(err))
		response.WriteDetail(c, http.StatusInternalServerError, "failed to update registration state")
		return
	}
	c.JSON(http.StatusOK, g)
}
