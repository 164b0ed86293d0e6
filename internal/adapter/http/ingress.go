// Package http provides the thin validate-and-forward ingress for task
// submission, plus the health endpoint.
package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Strob0t/AgentRelay/internal/codec"
	"github.com/Strob0t/AgentRelay/internal/middleware"
	"github.com/Strob0t/AgentRelay/internal/port/messagequeue"
)

// Handlers holds the ingress dependencies.
type Handlers struct {
	Queue messagequeue.Queue
	Log   *slog.Logger
}

// NewRouter builds the ingress router: a signed task-submission endpoint and
// an unauthenticated health probe.
func NewRouter(h *Handlers, ingressSecret string) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SignatureHMAC(ingressSecret))
		r.Post("/v1/tasks", h.submitTask)
	})

	return otelhttp.NewHandler(r, "ingress")
}

// submitTask validates the envelope and republishes it to the dispatch
// subject. The shim decodes to reject garbage before it can reach the queue;
// the worker decodes again from the published bytes, which carry the
// correlation id returned to the caller even when the codec generated it.
func (h *Handlers) submitTask(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	data, t, err := codec.Canonicalize(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The correlation id doubles as the dedup msg id, so a double-submitted
	// envelope with a caller-supplied id enqueues once.
	if err := h.Queue.Publish(r.Context(), messagequeue.SubjectTaskDispatch, data, t.CorrelationID); err != nil {
		h.Log.Error("task publish failed", "correlation_id", t.CorrelationID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}

	h.Log.Info("task accepted", "correlation_id", t.CorrelationID, "agent", t.Agent)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"correlation_id": t.CorrelationID,
	})
}

func (h *Handlers) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
