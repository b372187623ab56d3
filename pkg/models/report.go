package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ReportStatusPending    = "PENDING"
	ReportStatusGenerating = "GENERATING"
	ReportStatusCompleted  = "COMPLETED"
	ReportStatusFailed     = "FAILED"
)

// Report is the persisted unit of work. Created PENDING at intake submission;
// the generation pipeline moves it to GENERATING and then to a terminal
// COMPLETED or FAILED. Clients poll GET /api/v1/reports/{id} until terminal.
type Report struct {
	ID               uuid.UUID          `db:"id"                 json:"id"`
	CompanyName      string             `db:"company_name"       json:"company_name"`
	Branch           string             `db:"branch"             json:"branch"`
	Tier             Tier               `db:"tier"               json:"tier"`
	Status           string             `db:"status"             json:"status"`
	Intake           IntakeRecord       `db:"intake"             json:"intake"`
	Document         *GeneratedDocument `db:"document"           json:"document,omitempty"`
	Summary          *string            `db:"summary"            json:"summary,omitempty"`
	ErrorMessage     *string            `db:"error_message"      json:"error_message,omitempty"`
	TokensUsed       int                `db:"tokens_used"        json:"tokens_used"`
	GenerationTimeMs int64              `db:"generation_time_ms" json:"generation_time_ms"`
	CreatedAt        time.Time          `db:"created_at"         json:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at"         json:"updated_at"`
}
