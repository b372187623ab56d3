package conform

import (
	"fmt"

	"github.com/riegen-io/riegen/pkg/models"
)

// Document minimums independent of tier.
const (
	minSummaryLength    = 50
	minActionPlanItems  = 3
	minLegalObligations = 4
)

// riskCountTolerance allows the model to under-generate: a document passes
// with at least 75% of the tier's configured risk-item count.
const riskCountTolerance = 0.75

// Result is the outcome of a tier-conformance check.
type Result struct {
	Valid  bool
	Errors []string
}

// Validate checks doc against the tier's structural minimums. All checks are
// independent: every violated rule is collected, none short-circuits. A
// document violating any rule is invalid — this is a hard gate, not a
// warning.
func Validate(doc *models.GeneratedDocument, cfg models.TierConfig) Result {
	var errs []string

	if len(doc.Summary) < minSummaryLength {
		errs = append(errs, fmt.Sprintf("samenvatting ontbreekt of is te kort (minimaal %d tekens)", minSummaryLength))
	}

	if doc.CompanyProfile.Name == "" {
		errs = append(errs, "bedrijfsprofiel ontbreekt of heeft geen naam")
	}

	minRisks := int(riskCountTolerance * float64(cfg.MinRiskItems))
	if float64(len(doc.RiskItems)) < riskCountTolerance*float64(cfg.MinRiskItems) {
		errs = append(errs, fmt.Sprintf("te weinig risico's: %d gegenereerd, minimaal %d vereist (75%% van %d)",
			len(doc.RiskItems), minRisks, cfg.MinRiskItems))
	}

	totalMeasures := 0
	for i, risk := range doc.RiskItems {
		if risk.Category == "" {
			errs = append(errs, fmt.Sprintf("risico %d mist een categorie", i+1))
		}
		if risk.Priority == "" {
			errs = append(errs, fmt.Sprintf("risico %d mist een prioriteit", i+1))
		}
		if len(risk.Measures) == 0 {
			errs = append(errs, fmt.Sprintf("risico %d heeft geen geldige maatregelen", i+1))
		}
		totalMeasures += len(risk.Measures)
	}

	// Structural sanity check independent of the per-item checks: the total
	// measure count must not be disproportionately small.
	if len(doc.RiskItems) > 0 && totalMeasures < len(doc.RiskItems) {
		errs = append(errs, fmt.Sprintf("te weinig maatregelen in totaal: %d voor %d risico's",
			totalMeasures, len(doc.RiskItems)))
	}

	if cfg.RequireActionPlan && len(doc.ActionPlan) < minActionPlanItems {
		errs = append(errs, fmt.Sprintf("plan van aanpak ontbreekt of heeft minder dan %d items", minActionPlanItems))
	}

	if cfg.RequireLegal && len(doc.LegalObligations) < minLegalObligations {
		errs = append(errs, fmt.Sprintf("wettelijke verplichtingen ontbreken of hebben minder dan %d items", minLegalObligations))
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}
