// internal/app/features/health/handler.go
package health

import (
	"context"
	"net/http"
	"sort"

	"github.com/dalemusser/circlehub/internal/app/system/timeouts"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

// Check tests one backend. A nil error means healthy.
type Check func(ctx context.Context) error

// Handler holds the named backend checks.
type Handler struct {
	Checks map[string]Check
	Log    *zap.Logger
}

// NewHandler constructs a health Handler.
func NewHandler(checks map[string]Check, logger *zap.Logger) *Handler {
	return &Handler{
		Checks: checks,
		Log:    logger,
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "checks":{"database":"ok","mail_queue":"ok"} }
//
// When any check fails: 503, "status":"error", and the failing check
// reports "unavailable". Error detail goes to the log only.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			h.Log.Error("health check failed", zap.String("check", name), zap.Error(err))
			resp.Checks[name] = "unavailable"
			resp.Status = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}
