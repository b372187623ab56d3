package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/riegen-io/riegen/internal/api/response"
	"github.com/riegen-io/riegen/internal/store"
	"github.com/riegen-io/riegen/pkg/models"
)

// ReportGetter is the store subset the read handlers need.
type ReportGetter interface {
	GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error)
}

// NewGetReportHandler returns the handler for GET /api/v1/reports/{reportID}.
// Clients poll it until the report status is terminal.
func NewGetReportHandler(st ReportGetter) http.HandlerFunc {
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

		response.JSON(w, report)
	}
}

var _ ReportGetter = (store.Store)(nil)
