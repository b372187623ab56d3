package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riegen-io/riegen/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateReport(ctx context.Context, report *models.Report) error {
	intake, err := json.Marshal(report.Intake)
	if err != nil {
		return fmt.Errorf("encode intake: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (id, company_name, branch, tier, status, intake, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.ID, report.CompanyName, report.Branch, report.Tier, report.Status,
		intake, report.CreatedAt, report.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var (
		r        models.Report
		intake   []byte
		document []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, company_name, branch, tier, status, intake, document, summary, error_message,
		        tokens_used, generation_time_ms, created_at, updated_at
		 FROM reports WHERE id = $1`, id,
	).Scan(&r.ID, &r.CompanyName, &r.Branch, &r.Tier, &r.Status, &intake, &document,
		&r.Summary, &r.ErrorMessage, &r.TokensUsed, &r.GenerationTimeMs, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}

	if err := json.Unmarshal(intake, &r.Intake); err != nil {
		return nil, fmt.Errorf("decode intake: %w", err)
	}
	if len(document) > 0 {
		var doc models.GeneratedDocument
		if err := json.Unmarshal(document, &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		r.Document = &doc
	}
	return &r, nil
}

func (s *PostgresStore) BeginGeneration(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET status = $2, updated_at = NOW()
		 WHERE id = $1 AND status NOT IN ($2, $3)`,
		id, models.ReportStatusGenerating, models.ReportStatusCompleted)
	if err != nil {
		return false, fmt.Errorf("begin generation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) UpdateReportStatus(ctx context.Context, id uuid.UUID, status string, opts ...ReportUpdateOption) error {
	var params reportUpdateParams
	for _, opt := range opts {
		opt(&params)
	}

	query := "UPDATE reports SET status = $2, updated_at = NOW()"
	args := []any{id, status}
	argIdx := 3

	if params.Document != nil {
		doc, err := json.Marshal(params.Document)
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		query += fmt.Sprintf(", document = $%d", argIdx)
		args = append(args, doc)
		argIdx++
	}
	if params.Summary != nil {
		query += fmt.Sprintf(", summary = $%d", argIdx)
		args = append(args, *params.Summary)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}
	if params.TokensUsed != nil {
		query += fmt.Sprintf(", tokens_used = $%d", argIdx)
		args = append(args, *params.TokensUsed)
		argIdx++
	}
	if params.GenerationTimeMs != nil {
		query += fmt.Sprintf(", generation_time_ms = $%d", argIdx)
		args = append(args, *params.GenerationTimeMs)
		argIdx++
	}

	query += " WHERE id = $1"

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
