// Package generate drives the end-to-end generation job: it owns the report
// status state machine and sequences the prompt, model, repair, and
// conformance stages. All stage failures unwind to this package; nothing
// below it may leave a report in GENERATING on exit.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/riegen-io/riegen/internal/cache"
	"github.com/riegen-io/riegen/internal/conform"
	"github.com/riegen-io/riegen/internal/knowledge"
	"github.com/riegen-io/riegen/internal/llm"
	"github.com/riegen-io/riegen/internal/prompt"
	"github.com/riegen-io/riegen/internal/store"
	"github.com/riegen-io/riegen/pkg/jsonrepair"
	"github.com/riegen-io/riegen/pkg/models"
)

// ErrAlreadyGenerating is returned when another run holds the job. No two
// concurrent runs for the same report id may execute model calls.
var ErrAlreadyGenerating = errors.New("report generation already in progress")

// ConformanceError reports tier-minimum violations found by the validator.
// The generated document is persisted alongside the FAILED status for manual
// review, but never exposed as the deliverable.
type ConformanceError struct {
	Violations []string
}

func (e *ConformanceError) Error() string {
	return "document fails tier conformance: " + strings.Join(e.Violations, "; ")
}

// Per-stage completion budgets.
const (
	profileMaxTokens    = 2000
	riskBatchMaxTokens  = 4000
	actionPlanMaxTokens = 3000
	legalMaxTokens      = 2000
)

const statusCacheTTL = 30 * time.Minute

// Service orchestrates report generation.
type Service struct {
	store     store.Store
	cache     cache.Cache
	knowledge knowledge.Loader
	client    llm.Client
	prompts   prompt.Builder
	stream    bool
}

// NewService creates a new generation Service. When stream is true all model
// calls use the incremental transport.
func NewService(st store.Store, ca cache.Cache, kl knowledge.Loader, client llm.Client, stream bool) *Service {
	return &Service{
		store:     st,
		cache:     ca,
		knowledge: kl,
		client:    client,
		stream:    stream,
	}
}

// Generate runs the full pipeline for reportID and blocks until the job is
// terminal. A report already COMPLETED short-circuits: the stored document is
// returned without any model invocation, so re-invocation never re-bills.
func (s *Service) Generate(ctx context.Context, reportID uuid.UUID) (*models.GeneratedDocument, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	if report.Status == models.ReportStatusCompleted {
		if report.Document == nil {
			return nil, fmt.Errorf("report %s is completed but has no document", reportID)
		}
		return report.Document, nil
	}

	// GENERATING must be durable before the first model call; a crash
	// mid-pipeline then leaves an inspectable stuck state instead of
	// silently reverting to PENDING.
	started, err := s.store.BeginGeneration(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !started {
		return nil, ErrAlreadyGenerating
	}
	s.setStatus(ctx, reportID, models.ReportStatusGenerating)

	start := time.Now()
	doc, tokens, err := s.run(ctx, report)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		s.persistFailure(ctx, reportID, doc, tokens, elapsed, err)
		return nil, err
	}

	if err := s.store.UpdateReportStatus(ctx, reportID, models.ReportStatusCompleted,
		store.WithDocument(doc),
		store.WithSummary(doc.Summary),
		store.WithUsage(tokens, elapsed)); err != nil {
		return nil, fmt.Errorf("persisting completed report: %w", err)
	}
	s.setStatus(ctx, reportID, models.ReportStatusCompleted)

	slog.Info("report generated",
		"report_id", reportID,
		"risk_items", len(doc.RiskItems),
		"tokens_used", tokens,
		"duration_ms", elapsed,
	)
	return doc, nil
}

// Trigger starts generation in a background goroutine and returns
// immediately; callers poll the report status. It recovers from panics and
// always leaves the job terminal.
func (s *Service) Trigger(reportID uuid.UUID) {
	go func() {
		ctx := context.Background()

		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in generation", "error", r, "report_id", reportID)
				_ = s.store.UpdateReportStatus(ctx, reportID, models.ReportStatusFailed,
					store.WithErrorMessage(fmt.Sprintf("panic: %v", r)))
				s.setStatus(ctx, reportID, models.ReportStatusFailed)
			}
		}()

		if _, err := s.Generate(ctx, reportID); err != nil && !errors.Is(err, ErrAlreadyGenerating) {
			slog.Error("background generation failed", "error", err, "report_id", reportID)
		}
	}()
}

// run executes the pipeline stages in order and returns the assembled
// document plus cumulative token usage. On a conformance failure the invalid
// document is returned together with the error so it can be persisted for
// review; on any other failure the document is nil.
func (s *Service) run(ctx context.Context, report *models.Report) (*models.GeneratedDocument, int, error) {
	kb := s.knowledge.Load(report.Intake.Branch)
	cfg := report.Tier.Config()
	tokens := 0

	// Stage 1: company profile + summary.
	var profile struct {
		Summary        string                `json:"samenvatting"`
		CompanyProfile models.CompanyProfile `json:"bedrijfsprofiel"`
	}
	if err := s.invoke(ctx, s.prompts.Profile(kb, report.Intake), profileMaxTokens, &tokens, &profile); err != nil {
		return nil, tokens, fmt.Errorf("profile stage: %w", err)
	}

	// Stage 2: risk items, batch by batch. Batches run strictly in index
	// order: each prompt tells the model which slice it produces and to
	// avoid categories from earlier batches.
	var risks []models.RiskItem
	for batch := 0; batch < cfg.Batches; batch++ {
		p := s.prompts.RiskBatch(kb, report.Intake, report.Tier, batch, cfg.Batches)
		completion, err := s.complete(ctx, p, riskBatchMaxTokens, &tokens)
		if err != nil {
			return nil, tokens, fmt.Errorf("risk batch %d: %w", batch+1, err)
		}
		data, err := jsonrepair.Normalize(completion.Text)
		if err != nil {
			return nil, tokens, fmt.Errorf("risk batch %d: %w", batch+1, err)
		}
		items, err := conform.DecodeRiskItems(data)
		if err != nil {
			return nil, tokens, fmt.Errorf("risk batch %d: %w", batch+1, err)
		}
		risks = append(risks, items...)
	}

	// Stage 3: action plan, only for tiers that require one and only when
	// there are risks to plan for.
	var actionPlan []models.ActionPlanItem
	if cfg.RequireActionPlan && len(risks) > 0 {
		p := s.prompts.ActionPlan(kb, report.Intake, risks, report.Tier)
		if err := s.invoke(ctx, p, actionPlanMaxTokens, &tokens, &actionPlan); err != nil {
			return nil, tokens, fmt.Errorf("action plan stage: %w", err)
		}
	}

	// Stage 4: legal obligations, top tier only.
	var obligations []models.LegalObligationItem
	if cfg.RequireLegal {
		p := s.prompts.LegalObligations(kb, report.Intake)
		if err := s.invoke(ctx, p, legalMaxTokens, &tokens, &obligations); err != nil {
			return nil, tokens, fmt.Errorf("legal obligations stage: %w", err)
		}
	}

	doc := &models.GeneratedDocument{
		Summary:          profile.Summary,
		CompanyProfile:   profile.CompanyProfile,
		RiskItems:        risks,
		ActionPlan:       actionPlan,
		LegalObligations: obligations,
	}

	if res := conform.Validate(doc, cfg); !res.Valid {
		return doc, tokens, &ConformanceError{Violations: res.Errors}
	}
	return doc, tokens, nil
}

// invoke runs one model call and decodes the repaired JSON payload into v.
func (s *Service) invoke(ctx context.Context, p prompt.Prompt, maxTokens int, tokens *int, v any) error {
	completion, err := s.complete(ctx, p, maxTokens, tokens)
	if err != nil {
		return err
	}
	return jsonrepair.Unmarshal(completion.Text, v)
}

func (s *Service) complete(ctx context.Context, p prompt.Prompt, maxTokens int, tokens *int) (*llm.Completion, error) {
	completion, err := s.client.Complete(ctx, llm.CompletionRequest{
		System:    p.System,
		User:      p.User,
		MaxTokens: maxTokens,
		Stream:    s.stream,
	})
	if err != nil {
		return nil, err
	}
	*tokens += completion.PromptTokens + completion.CompletionTokens
	return completion, nil
}

// persistFailure lands the job in FAILED. A conformance failure keeps the
// invalid document and stores the itemized violations as the report summary;
// every other failure stores no partial document.
func (s *Service) persistFailure(ctx context.Context, reportID uuid.UUID, doc *models.GeneratedDocument, tokens int, elapsedMs int64, cause error) {
	opts := []store.ReportUpdateOption{
		store.WithErrorMessage(cause.Error()),
		store.WithUsage(tokens, elapsedMs),
	}

	var confErr *ConformanceError
	if errors.As(cause, &confErr) && doc != nil {
		opts = append(opts,
			store.WithDocument(doc),
			store.WithSummary("Rapport voldoet niet aan de eisen:\n- "+strings.Join(confErr.Violations, "\n- ")))
	}

	if err := s.store.UpdateReportStatus(ctx, reportID, models.ReportStatusFailed, opts...); err != nil {
		slog.Error("persisting failed report", "error", err, "report_id", reportID)
	}
	s.setStatus(ctx, reportID, models.ReportStatusFailed)
}

func (s *Service) setStatus(ctx context.Context, reportID uuid.UUID, status string) {
	_ = s.cache.SetReportStatus(ctx, reportID, status, statusCacheTTL)
}
