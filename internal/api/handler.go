package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ibn-labs/fulcrum/internal/httputil"
	"github.com/ibn-labs/fulcrum/internal/pipeline"
	"github.com/ibn-labs/fulcrum/internal/runstore"
)

const maxRequestText = 8 << 10

// Executor runs one request through the pipeline to a terminal state.
type Executor interface {
	Execute(ctx context.Context, text string) *pipeline.Run
}

// RunStore is the persistence surface the handlers need. Nil-able in tests.
type RunStore interface {
	Save(ctx context.Context, rec runstore.Record) error
	Get(ctx context.Context, id string) (runstore.Record, error)
}

// Handler holds dependencies for the request HTTP handlers.
type Handler struct {
	orchestrator Executor
	runs         RunStore
}

func NewHandler(orchestrator Executor, runs RunStore) *Handler {
	return &Handler{orchestrator: orchestrator, runs: runs}
}

type submitRequest struct {
	Text string `json:"text"`
}

type submitResponse struct {
	RunID      string           `json:"run_id"`
	Outcome    pipeline.Outcome `json:"outcome"`
	DurationMs int64            `json:"duration_ms"`
}

// SubmitRequest handles POST /v1/requests. The pipeline runs synchronously;
// the response carries the terminal outcome.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestText+1))
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req submitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		httputil.WriteBadRequestError(w, reqID, "text is required")
		return
	}
	if len(req.Text) > maxRequestText {
		httputil.WriteBadRequestError(w, reqID, "text exceeds the maximum request size")
		return
	}

	run := h.orchestrator.Execute(r.Context(), req.Text)

	if h.runs != nil {
		rec, err := runstore.FromRun(run)
		if err == nil {
			err = h.runs.Save(r.Context(), rec)
		}
		if err != nil {
			// The caller still gets the outcome; only the lookup is lost.
			slog.Error("failed to persist run", "run_id", run.ID, "error", err)
		}
	}

	slog.Info("request completed",
		"request_id", reqID,
		"run_id", run.ID,
		"status", run.Outcome.Status,
		"error_kind", run.Outcome.ErrorKind,
		"order_id", run.Outcome.OrderID,
		"retry_count", run.Outcome.RetryCount,
		"duration_ms", run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(run.Outcome))
	json.NewEncoder(w).Encode(submitResponse{
		RunID:      run.ID,
		Outcome:    run.Outcome,
		DurationMs: run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
	})
}

// statusFor maps a terminal outcome onto an HTTP status. Every run ends in a
// structured outcome, so pipeline failures are 200-family or 4xx/502, never
// an opaque 500.
func statusFor(out pipeline.Outcome) int {
	switch out.Status {
	case pipeline.StatusSubmitted:
		return http.StatusCreated
	case pipeline.StatusHeld:
		return http.StatusOK
	default:
		switch out.ErrorKind {
		case pipeline.KindMalformedIntent, pipeline.KindInvalidOrder, pipeline.KindUntranslatable:
			return http.StatusUnprocessableEntity
		case pipeline.KindGatewayRejected:
			return http.StatusBadGateway
		case pipeline.KindGatewayUnreachable, pipeline.KindRetrievalUnavailable, pipeline.KindInterpretationFailed:
			return http.StatusServiceUnavailable
		case pipeline.KindCancelled:
			return 499 // client closed request
		default:
			return http.StatusInternalServerError
		}
	}
}

// GetRequest handles GET /v1/requests/{id}.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	id := chi.URLParam(r, "id")

	if h.runs == nil {
		httputil.WriteServiceUnavailableError(w, reqID, "run storage is not configured")
		return
	}

	rec, err := h.runs.Get(r.Context(), id)
	if errors.Is(err, runstore.ErrNotFound) {
		httputil.WriteNotFoundError(w, reqID, "no run with id "+id)
		return
	}
	if err != nil {
		slog.Error("failed to load run", "run_id", id, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to load run")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// Health handles GET /fulcrum/v1/health.
func Health(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"version": version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}
