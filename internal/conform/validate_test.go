package conform

import (
	"fmt"
	"strings"
	"testing"

	"github.com/riegen-io/riegen/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validDocument returns a document satisfying the ENTERPRISE minimums.
func validDocument(riskCount int) *models.GeneratedDocument {
	doc := &models.GeneratedDocument{
		Summary:        strings.Repeat("Belangrijkste bevindingen van de RI&E. ", 3),
		CompanyProfile: models.CompanyProfile{Name: "Veilig BV", Branch: "beveiliging", EmployeeCount: 12},
	}
	for i := 0; i < riskCount; i++ {
		doc.RiskItems = append(doc.RiskItems, models.RiskItem{
			ID:       fmt.Sprintf("risico_%d", i+1),
			Category: fmt.Sprintf("Categorie %d", i+1),
			Priority: models.PriorityHigh,
			Measures: []models.Measure{{Text: "Maatregel", Timeframe: models.TimeframeShort}},
		})
	}
	for i := 0; i < 8; i++ {
		doc.ActionPlan = append(doc.ActionPlan, models.ActionPlanItem{Number: i + 1, Measure: "Maatregel"})
	}
	for i := 0; i < 6; i++ {
		doc.LegalObligations = append(doc.LegalObligations, models.LegalObligationItem{Obligation: "Verplichting"})
	}
	return doc
}

func TestValidate_ValidDocument(t *testing.T) {
	res := Validate(validDocument(10), models.TierEnterprise.Config())
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	doc := &models.GeneratedDocument{
		Summary: "kort",
		RiskItems: []models.RiskItem{
			{Category: "", Priority: "", Measures: nil},
		},
	}
	res := Validate(doc, models.TierEnterprise.Config())

	require.False(t, res.Valid)
	joined := strings.Join(res.Errors, "\n")
	assert.Contains(t, joined, "samenvatting")
	assert.Contains(t, joined, "bedrijfsprofiel")
	assert.Contains(t, joined, "te weinig risico's")
	assert.Contains(t, joined, "categorie")
	assert.Contains(t, joined, "prioriteit")
	assert.Contains(t, joined, "plan van aanpak")
	assert.Contains(t, joined, "wettelijke verplichtingen")
}

func TestValidate_RiskCountTolerance(t *testing.T) {
	// FREE requires 4 items; 75% tolerance admits 3.
	cfg := models.TierFree.Config()

	doc := validDocument(3)
	assert.True(t, Validate(doc, cfg).Valid)

	doc = validDocument(2)
	res := Validate(doc, cfg)
	require.False(t, res.Valid)
	assert.Contains(t, strings.Join(res.Errors, "\n"), "te weinig risico's")
}

func TestValidate_MissingLegalSectionFailsEnterprise(t *testing.T) {
	doc := validDocument(10)
	doc.LegalObligations = nil

	res := Validate(doc, models.TierEnterprise.Config())
	require.False(t, res.Valid)
	assert.Contains(t, strings.Join(res.Errors, "\n"), "wettelijke verplichtingen")

	// The same document still passes tiers without the legal requirement.
	assert.True(t, Validate(doc, models.TierProfessional.Config()).Valid)
}

func TestValidate_AggregateMeasureCheck(t *testing.T) {
	doc := validDocument(10)
	// Per-item check failure for one item also trips the aggregate ratio
	// once enough items lose their measures.
	for i := range doc.RiskItems {
		if i%2 == 0 {
			doc.RiskItems[i].Measures = nil
		}
	}
	res := Validate(doc, models.TierEnterprise.Config())
	require.False(t, res.Valid)
	assert.Contains(t, strings.Join(res.Errors, "\n"), "te weinig maatregelen in totaal")
}

func TestValidate_TierGateMonotonicity(t *testing.T) {
	// A document satisfying ENTERPRISE satisfies every lower tier.
	doc := validDocument(10)
	require.True(t, Validate(doc, models.TierEnterprise.Config()).Valid)

	for _, tier := range []models.Tier{models.TierFree, models.TierBasic, models.TierProfessional} {
		assert.True(t, Validate(doc, tier.Config()).Valid, "tier %s", tier)
	}
}
