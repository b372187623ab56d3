// Package prompt assembles the model instructions for each generation stage.
package prompt

import (
	"fmt"
	"strings"

	"github.com/riegen-io/riegen/pkg/models"
)

// Prompt is one assembled model instruction pair.
type Prompt struct {
	System string
	User   string
}

// Builder constructs stage prompts from knowledge and intake data.
// All methods are pure functions with no side effects; identical inputs
// always produce identical prompts. Zero value is ready to use.
type Builder struct{}

const systemBase = `Je bent een gecertificeerde arbodeskundige en RI&E-expert. Schrijf altijd in correct Nederlands. Verwijs naar specifieke wetsartikelen (Arbowet, Arbobesluit). Antwoord UITSLUITEND met valide JSON. Geen tekst ervoor of erna.`

// Profile returns the prompt for the company-profile + summary stage.
func (b Builder) Profile(kb *models.KnowledgeDocument, intake models.IntakeRecord) Prompt {
	return Prompt{
		System: systemBase + " Begin direct met {",
		User: b.context(kb, intake) + `

Genereer een bedrijfsprofiel en samenvatting. JSON format:
{
  "samenvatting": "Executive summary van de RI&E (2-3 alinea's, beschrijf de belangrijkste bevindingen)",
  "bedrijfsprofiel": {
    "naam": "bedrijfsnaam",
    "branche": "branche",
    "aantalMedewerkers": getal,
    "beschrijving": "Korte beschrijving van het bedrijf en werkzaamheden"
  }
}`,
	}
}

// RiskBatch returns the prompt for one batch of the risk-item stage. The
// fixed total item count of the tier is partitioned into fixed-size chunks;
// each batch is told which slice it produces and to avoid repeating
// categories from earlier batches.
func (b Builder) RiskBatch(kb *models.KnowledgeDocument, intake models.IntakeRecord, tier models.Tier, batchIndex, totalBatches int) Prompt {
	cfg := tier.Config()
	start := batchIndex * models.RiskBatchSize
	count := models.BatchCount(cfg.MinRiskItems, batchIndex)

	var u strings.Builder
	u.WriteString(b.context(kb, intake))
	fmt.Fprintf(&u, "\n\nGenereer risico's %d t/m %d van %d totaal voor dit bedrijf.\n",
		start+1, start+count, cfg.MinRiskItems)
	fmt.Fprintf(&u, "Elk risico moet %d of meer maatregelen bevatten.\n", cfg.MeasuresPerRisk)
	if totalBatches > 1 {
		u.WriteString("Gebruik UNIEKE categorieën (niet herhalen uit eerdere batches).\n")
	}
	fmt.Fprintf(&u, `
JSON format — een array van risico objecten:
[
  {
    "id": "risico_%d",
    "categorie": "Naam categorie",
    "prioriteit": "hoog|midden|laag",
    "risicoScore": 1-25,
    "beschrijving": "Beschrijving van het risico",
    "wettelijkKader": "Relevante wet/artikel",
    "gevaren": ["gevaar1", "gevaar2"],
    "huidigeBeheersing": "Wat het bedrijf al doet",
    "maatregelen": [
      {
        "maatregel": "Concrete maatregel",
        "type": "bronmaatregel|collectief|individueel|organisatorisch",
        "prioriteit": "hoog|midden|laag",
        "termijn": "direct|kort|middel",
        "verantwoordelijke": "Wie",
        "kostenindicatie": "indicatie"
      }
    ]
  }
]

Genereer EXACT %d risico's. Antwoord met een JSON array.`, start+1, count)

	return Prompt{System: systemBase + " Begin direct met [", User: u.String()}
}

// ActionPlan returns the prompt for the action-plan stage, conditioned on the
// already-generated risk items.
func (b Builder) ActionPlan(kb *models.KnowledgeDocument, intake models.IntakeRecord, risks []models.RiskItem, tier models.Tier) Prompt {
	var overview strings.Builder
	for _, r := range risks {
		texts := make([]string, 0, len(r.Measures))
		for _, m := range r.Measures {
			texts = append(texts, m.Text)
		}
		fmt.Fprintf(&overview, "- %s: %s (%s) — %s\n", r.ID, r.Category, r.Priority, strings.Join(texts, "; "))
	}

	var u strings.Builder
	u.WriteString(b.context(kb, intake))
	u.WriteString("\n\nOp basis van deze geïdentificeerde risico's en maatregelen:\n")
	u.WriteString(overview.String())
	fmt.Fprintf(&u, `
Genereer een Plan van Aanpak. JSON format — een array:
[
  {
    "nummer": 1,
    "maatregel": "Concrete maatregel uit risico",
    "risico": "Gekoppeld risico categorie",
    "prioriteit": "hoog|midden|laag",
    "termijn": "direct|kort|middel",
    "verantwoordelijke": "Functie/rol",
    "deadline": "Concrete periode (bijv. Q2 2026)",
    "status": "nog niet gestart"
  }
]

Genereer minimaal %d items, gesorteerd op prioriteit (hoog eerst).`, tier.Config().MinActionPlanItems)

	return Prompt{System: systemBase + " Begin direct met [", User: u.String()}
}

// LegalObligations returns the prompt for the legal-obligations stage.
func (b Builder) LegalObligations(kb *models.KnowledgeDocument, intake models.IntakeRecord) Prompt {
	return Prompt{
		System: systemBase + " Begin direct met [",
		User: b.context(kb, intake) + `

Beoordeel de wettelijke verplichtingen voor dit bedrijf. JSON format — een array:
[
  {
    "verplichting": "Naam van de verplichting",
    "wet": "Specifieke wet en artikel",
    "status": "voldoet|aandachtspunt|niet_in_orde",
    "toelichting": "Korte toelichting"
  }
]

Beoordeel minimaal 6 verplichtingen (RI&E plicht, BHV, preventiemedewerker, voorlichting, PAGO, etc.).`,
	}
}

// context builds the shared knowledge + company block every stage starts with.
func (b Builder) context(kb *models.KnowledgeDocument, intake models.IntakeRecord) string {
	var s strings.Builder

	fmt.Fprintf(&s, "KENNISBANK BRANCHE: %s\n", kb.Name)
	fmt.Fprintf(&s, "ARBOCATALOGUS: %s\n", orUnavailable(kb.Arbocatalogus))
	fmt.Fprintf(&s, "CAO: %s\n\n", orUnavailable(kb.CAO))

	s.WriteString("WETTELIJKE KADERS:\n")
	if len(kb.LegalFrameworks) == 0 {
		s.WriteString("Geen specifieke kaders\n")
	}
	for _, w := range kb.LegalFrameworks {
		fmt.Fprintf(&s, "- %s %s: %s\n", w.Law, w.Article, w.Description)
	}

	s.WriteString("\nRISICO CATEGORIEËN:\n")
	if len(kb.RiskCategories) == 0 {
		s.WriteString("Algemeen\n")
	}
	for _, c := range kb.RiskCategories {
		fmt.Fprintf(&s, "- %s: %s\n", c.Category, strings.Join(c.TypicalRisks, ", "))
	}

	s.WriteString("\nBEDRIJFSGEGEVENS:\n")
	fmt.Fprintf(&s, "- Bedrijfsnaam: %s\n", intake.CompanyName)
	fmt.Fprintf(&s, "- Branche: %s\n", intake.Branch)
	fmt.Fprintf(&s, "- Aantal medewerkers: %d\n", intake.EmployeeCount)
	fmt.Fprintf(&s, "- Aantal locaties: %d\n", max(intake.LocationCount, 1))
	fmt.Fprintf(&s, "- BHV aanwezig: %s\n", jaNee(intake.FirstAidPresent))
	fmt.Fprintf(&s, "- Aantal BHV'ers: %s\n", orUnknown(intake.FirstAidCount))
	fmt.Fprintf(&s, "- Preventiemedewerker: %s\n", jaNee(intake.PreventionOfficer))
	fmt.Fprintf(&s, "- Eerder RI&E gedaan: %s\n", jaNee(intake.PriorAssessment))

	s.WriteString("\nWERKPLEK:\n")
	if len(intake.Workplace.ActivityTypes) > 0 {
		fmt.Fprintf(&s, "- Type werkzaamheden: %s\n", strings.Join(intake.Workplace.ActivityTypes, ", "))
	}
	fmt.Fprintf(&s, "- Beeldschermwerk: %s\n", jaNee(intake.Workplace.ScreenWork))
	fmt.Fprintf(&s, "- Fysiek werk: %s\n", jaNee(intake.Workplace.PhysicalLabor))
	fmt.Fprintf(&s, "- Buitenwerk: %s\n", jaNee(intake.Workplace.OutdoorWork))
	fmt.Fprintf(&s, "- Nachtwerk: %s\n", jaNee(intake.Workplace.NightWork))
	fmt.Fprintf(&s, "- Alleen werken: %s\n", jaNee(intake.Workplace.LoneWork))
	fmt.Fprintf(&s, "- Gevaarlijke stoffen: %s", jaNee(intake.Workplace.HazardousSubstances))

	return s.String()
}

func jaNee(v bool) string {
	if v {
		return "Ja"
	}
	return "Nee"
}

func orUnavailable(v string) string {
	if v == "" {
		return "Niet beschikbaar"
	}
	return v
}

func orUnknown(v string) string {
	if v == "" {
		return "Onbekend"
	}
	return v
}
