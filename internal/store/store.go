package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/riegen-io/riegen/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error)

	// BeginGeneration transitions a report to GENERATING, but only when it
	// is not already GENERATING or COMPLETED. Reports whether the transition
	// happened; a false result means another run holds the job or it is done.
	BeginGeneration(ctx context.Context, id uuid.UUID) (bool, error)

	UpdateReportStatus(ctx context.Context, id uuid.UUID, status string, opts ...ReportUpdateOption) error
}

type reportUpdateParams struct {
	Document         *models.GeneratedDocument
	Summary          *string
	ErrorMessage     *string
	TokensUsed       *int
	GenerationTimeMs *int64
}

type ReportUpdateOption func(*reportUpdateParams)

func WithDocument(doc *models.GeneratedDocument) ReportUpdateOption {
	return func(p *reportUpdateParams) {
		p.Document = doc
	}
}

func WithSummary(summary string) ReportUpdateOption {
	return func(p *reportUpdateParams) {
		p.Summary = &summary
	}
}

func WithErrorMessage(msg string) ReportUpdateOption {
	return func(p *reportUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithUsage(tokens int, elapsedMs int64) ReportUpdateOption {
	return func(p *reportUpdateParams) {
		p.TokensUsed = &tokens
		p.GenerationTimeMs = &elapsedMs
	}
}

// ApplyReportUpdate applies a status update to an in-memory report the same
// way the database UPDATE would. In-memory Store implementations use this so
// option semantics stay in one place.
func ApplyReportUpdate(r *models.Report, status string, opts ...ReportUpdateOption) {
	var params reportUpdateParams
	for _, opt := range opts {
		opt(&params)
	}

	r.Status = status
	if params.Document != nil {
		r.Document = params.Document
	}
	if params.Summary != nil {
		r.Summary = params.Summary
	}
	if params.ErrorMessage != nil {
		r.ErrorMessage = params.ErrorMessage
	}
	if params.TokensUsed != nil {
		r.TokensUsed = *params.TokensUsed
	}
	if params.GenerationTimeMs != nil {
		r.GenerationTimeMs = *params.GenerationTimeMs
	}
}
