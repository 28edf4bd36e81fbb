package analytics

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-events/ticketing/internal/realtime"
	"github.com/aura-events/ticketing/pkg/response"
)

// Counter loads attendance counts.
type Counter interface {
	Counts(ctx context.Context) (Counts, error)
}

// ScannerCounter reports connected clients per room. *realtime.Hub satisfies it.
type ScannerCounter interface {
	ClientCount(room string) int
}

// QueueStats reports email backlog. *queue.Queue satisfies it.
type QueueStats interface {
	Pending(ctx context.Context) (int64, error)
	DeadLetters(ctx context.Context) (int64, error)
}

// Handler handles GET /analytics/.
type Handler struct {
	counts   Counter
	scanners ScannerCounter
	queue    QueueStats
	logger   *zap.Logger
}

// NewHandler creates an analytics handler. scanners and queue may be nil.
func NewHandler(counts Counter, scanners ScannerCounter, queue QueueStats, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{counts: counts, scanners: scanners, queue: queue, logger: logger}
}

// SummaryResponse is the JSON shape for the check-in dashboard.
type SummaryResponse struct {
	TotalRegistrations int     `json:"total_registrations"`
	TotalCheckedIn     int     `json:"total_checked_in"`
	TotalNoShow        int     `json:"total_no_show"`
	CheckinRate        float64 `json:"checkin_rate"`
	EmailsSent         int     `json:"emails_sent"`
	EmailsFailed       int     `json:"emails_failed"`
	EmailsQueued       int64   `json:"emails_queued"`
	EmailsDeadLettered int64   `json:"emails_dead_lettered"`
	LiveScanners       int     `json:"live_scanners"`
}

// Summary handles GET /analytics/. Staff only (enforced by route middleware).
func (h *Handler) Summary(c *gin.Context) {
	counts, err := h.counts.Counts(c.Request.Context())
	if err != nil {
		h.logger.Error("load analytics", zap.Error(err))
		response.Internal(c, "failed to load analytics")
		return
	}
	out := SummaryResponse{
		TotalRegistrations: counts.Registrations,
		TotalCheckedIn:     counts.CheckedIn,
		TotalNoShow:        counts.Registrations - counts.CheckedIn,
		EmailsSent:         counts.EmailsSent,
		EmailsFailed:       counts.EmailsFailed,
	}
	if out.TotalNoShow < 0 {
		out.TotalNoShow = 0
	}
	if counts.Registrations > 0 {
		out.CheckinRate = float64(counts.CheckedIn) / float64(counts.Registrations) * 100
	}
	if h.scanners != nil {
		out.LiveScanners = h.scanners.ClientCount(realtime.RoomCheckins)
	}
	if h.queue != nil {
		// backlog read failures leave the counters at zero
		ctx := c.Request.Context()
		if n, err := h.queue.Pending(ctx); err == nil {
			out.EmailsQueued = n
		} else {
			h.logger.Warn("read email backlog", zap.Error(err))
		}
		if n, err := h.queue.DeadLetters(ctx); err == nil {
			out.EmailsDeadLettered = n
		}
	}
	response.OK(c, out)
}
