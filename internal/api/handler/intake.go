package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/riegen-io/riegen/internal/api/response"
	"github.com/riegen-io/riegen/internal/store"
	"github.com/riegen-io/riegen/pkg/models"
)

// ReportCreator is the store subset the intake handler needs.
type ReportCreator interface {
	CreateReport(ctx context.Context, report *models.Report) error
}

type createReportRequest struct {
	CompanyName         string                  `json:"bedrijfsnaam" validate:"required,min=2,max=200"`
	Branch              string                  `json:"branche" validate:"required,max=50"`
	Tier                string                  `json:"tier" validate:"required"`
	EmployeeCount       int                     `json:"aantalMedewerkers" validate:"required,min=1,max=100000"`
	LocationCount       int                     `json:"aantalLocaties" validate:"min=0,max=1000"`
	FirstAidPresent     bool                    `json:"bhvAanwezig"`
	FirstAidCount       string                  `json:"aantalBhvers" validate:"max=50"`
	PreventionOfficer   bool                    `json:"preventiemedewerker"`
	PriorAssessment     bool                    `json:"eerderRie"`
	PriorAssessmentNote string                  `json:"laatsteRie" validate:"max=500"`
	Workplace           createWorkplaceRequest  `json:"werkplek"`
}

type createWorkplaceRequest struct {
	ActivityTypes       []string `json:"typeWerkzaamheden" validate:"max=20,dive,max=100"`
	HazardousSubstances bool     `json:"gevaarlijkeStoffen"`
	ScreenWork          bool     `json:"beeldschermwerk"`
	PhysicalLabor       bool     `json:"fysiekWerk"`
	OutdoorWork         bool     `json:"buitenwerk"`
	NightWork           bool     `json:"nachtwerk"`
	LoneWork            bool     `json:"alleenWerken"`
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// sanitize strips HTML-ish markup from free-text intake fields. The values
// end up verbatim inside model prompts and generated documents.
func sanitize(s string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(s, ""))
}

// NewCreateReportHandler returns the handler for POST /api/v1/reports. It
// stores the intake snapshot, kicks off background generation, and responds
// 202 with the report id for polling.
func NewCreateReportHandler(st ReportCreator, svc Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createReportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		req.CompanyName = sanitize(req.CompanyName)
		req.FirstAidCount = sanitize(req.FirstAidCount)
		req.PriorAssessmentNote = sanitize(req.PriorAssessmentNote)
		for i, a := range req.Workplace.ActivityTypes {
			req.Workplace.ActivityTypes[i] = sanitize(a)
		}

		if err := validate.Struct(req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED",
				"Request validation failed", validationDetails(err))
			return
		}

		tier := models.Tier(strings.ToUpper(strings.TrimSpace(req.Tier)))
		if !tier.Valid() {
			response.Error(w, http.StatusBadRequest, "INVALID_TIER",
				"tier must be one of GRATIS, BASIS, PROFESSIONAL, ENTERPRISE", nil)
			return
		}

		branch := models.NormalizeBranch(req.Branch)

		now := time.Now().UTC()
		report := &models.Report{
			ID:          uuid.New(),
			CompanyName: req.CompanyName,
			Branch:      branch,
			Tier:        tier,
			Status:      models.ReportStatusPending,
			Intake: models.IntakeRecord{
				CompanyName:         req.CompanyName,
				Branch:              branch,
				EmployeeCount:       req.EmployeeCount,
				LocationCount:       req.LocationCount,
				FirstAidPresent:     req.FirstAidPresent,
				FirstAidCount:       req.FirstAidCount,
				PreventionOfficer:   req.PreventionOfficer,
				PriorAssessment:     req.PriorAssessment,
				PriorAssessmentNote: req.PriorAssessmentNote,
				Workplace: models.WorkplaceConditions{
					ActivityTypes:       req.Workplace.ActivityTypes,
					HazardousSubstances: req.Workplace.HazardousSubstances,
					ScreenWork:          req.Workplace.ScreenWork,
					PhysicalLabor:       req.Workplace.PhysicalLabor,
					OutdoorWork:         req.Workplace.OutdoorWork,
					NightWork:           req.Workplace.NightWork,
					LoneWork:            req.Workplace.LoneWork,
				},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := st.CreateReport(r.Context(), report); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to create report", nil)
			return
		}

		svc.Trigger(report.ID)

		response.Accepted(w, map[string]any{
			"id":     report.ID,
			"status": report.Status,
			"tier":   report.Tier,
			"branch": report.Branch,
		})
	}
}

// validationDetails flattens validator errors into a field -> rule map.
func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}

var _ ReportCreator = (store.Store)(nil)
