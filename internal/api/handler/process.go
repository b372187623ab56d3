package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/riegen-io/riegen/internal/api/response"
	"github.com/riegen-io/riegen/internal/generate"
	"github.com/riegen-io/riegen/internal/llm"
	"github.com/riegen-io/riegen/internal/store"
	"github.com/riegen-io/riegen/pkg/models"
)

// heartbeatInterval keeps the SSE connection alive through proxies while a
// generation run is in flight.
const heartbeatInterval = 5 * time.Second

// NewProcessReportHandler returns the handler for
// POST /api/v1/reports/{reportID}/process. A completed report is answered
// with a plain JSON response; anything else runs generation while streaming
// SSE heartbeats, ending with a completed or failed event.
func NewProcessReportHandler(st ReportGetter, svc Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "reportID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"reportID must be a valid UUID", nil)
			return
		}

		report, err := st.GetReport(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "REPORT_NOT_FOUND",
				"No report with this id", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		if report.Status == models.ReportStatusCompleted {
			response.JSON(w, report)
			return
		}
		if report.Status == models.ReportStatusGenerating {
			response.Error(w, http.StatusConflict, "GENERATION_IN_PROGRESS",
				"Report generation is already running", nil)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			response.Error(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED",
				"Response writer does not support streaming", nil)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		writeEvent(w, "status", map[string]string{"status": models.ReportStatusGenerating})
		flusher.Flush()

		// The run must survive a dropped SSE connection: the result is
		// persisted either way and the client falls back to polling.
		type result struct {
			doc *models.GeneratedDocument
			err error
		}
		done := make(chan result, 1)
		go func() {
			doc, err := svc.Generate(context.WithoutCancel(r.Context()), id)
			done <- result{doc: doc, err: err}
		}()

		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				flusher.Flush()
			case res := <-done:
				if res.err != nil {
					writeEvent(w, "failed", failureBody(res.err))
				} else {
					writeEvent(w, "completed", map[string]any{
						"id":       id,
						"status":   models.ReportStatusCompleted,
						"document": res.doc,
					})
				}
				flusher.Flush()
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

// failureBody maps a generation error to the SSE failure payload.
func failureBody(err error) map[string]any {
	body := map[string]any{
		"status":  models.ReportStatusFailed,
		"code":    "GENERATION_FAILED",
		"message": "Report generation failed",
	}

	var confErr *generate.ConformanceError
	var upErr *llm.UpstreamError
	switch {
	case errors.Is(err, generate.ErrAlreadyGenerating):
		body["code"] = "GENERATION_IN_PROGRESS"
		body["message"] = "Report generation is already running"
	case errors.As(err, &confErr):
		body["code"] = "DOCUMENT_NOT_CONFORMANT"
		body["message"] = "Generated document does not meet tier requirements"
		body["violations"] = confErr.Violations
	case errors.As(err, &upErr):
		body["code"] = "MODEL_UNAVAILABLE"
		body["message"] = "The language model is not available"
	}
	return body
}
