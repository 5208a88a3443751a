package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"revenue-balance/internal/app"
	"revenue-balance/internal/job"
	"revenue-balance/internal/store"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService the routes call.
type Handler struct {
	svc       app.ApplicationService
	jwtSecret string
	log       *slog.Logger
}

// NewHandler creates and wires the chi router with all routes. metrics serves
// /metrics; it may be nil.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string, metrics http.Handler, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
		log:       log,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))

	// ── Health and metrics (public) ──────────────────────────────────────────
	r.Get("/api/health", h.health)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	// ── Read-only ops API (public) ───────────────────────────────────────────
	r.Get("/api/summaries/latest", h.latestSummary)
	r.Get("/api/orders/{id}/balance", h.orderBalance)
	r.Get("/api/runs/last", h.lastRun)

	// ── Manual trigger (admin bearer token) ──────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 10))
		r.Use(h.RequireAdmin)
		r.Post("/api/runs", h.triggerRun)
	})

	return r
}

// health returns service status and whether a run is in progress.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status  string `json:"status"`
		Running bool   `json:"running"`
	}
	writeJSON(w, http.StatusOK, response{Status: "ok", Running: h.svc.IsRunning()})
}

// latestSummary handles GET /api/summaries/latest.
func (h *Handler) latestSummary(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.LatestSummary(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to read latest summary", "err", err)
		writeError(w, r, "failed to read summary", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	if res.Record == nil {
		writeError(w, r, "no summary record yet", "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newSummaryView(res.Record))
}

// orderBalance handles GET /api/orders/{id}/balance. Nothing is written.
func (h *Handler) orderBalance(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	res, err := h.svc.PreviewOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			writeError(w, r, "sales order not found", "NOT_FOUND", http.StatusNotFound)
			return
		}
		h.log.ErrorContext(r.Context(), "order preview failed", "order_id", orderID, "err", err)
		writeError(w, r, "failed to classify order", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(res.Outcome))
}

// lastRun handles GET /api/runs/last.
func (h *Handler) lastRun(w http.ResponseWriter, r *http.Request) {
	last := h.svc.LastRun()
	if last == nil {
		writeError(w, r, "no run has finished in this process", "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newRunView(last))
}

// triggerRun handles POST /api/runs. By default the run continues in the background
// and the response is 202; ?wait=true blocks until the run finishes. Either way the run
// slot is claimed before responding, so a concurrent run always yields 409.
func (h *Handler) triggerRun(w http.ResponseWriter, r *http.Request) {
	req := app.RunRequest{Trigger: "api"}
	if claims := authFromContext(r.Context()); claims != nil && claims.Subject != "" {
		req.Trigger = "api:" + claims.Subject
	}

	if r.URL.Query().Get("wait") == "true" {
		res, err := h.svc.RunNow(r.Context(), req)
		if err != nil {
			h.writeRunError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newRunView(res))
		return
	}

	if err := h.svc.StartRun(context.WithoutCancel(r.Context()), req); err != nil {
		h.writeRunError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *Handler) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, job.ErrRunInProgress) {
		writeError(w, r, "a run is already in progress", "RUN_IN_PROGRESS", http.StatusConflict)
		return
	}
	h.log.ErrorContext(r.Context(), "run failed", "err", err)
	writeError(w, r, "run failed: "+err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
