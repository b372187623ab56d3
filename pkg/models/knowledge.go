package models

// KnowledgeDocument is branch-specific legal/context reference data used to
// ground generation. Loaded once per branch and cached for the process
// lifetime; content only changes on redeploy.
type KnowledgeDocument struct {
	Slug            string           `json:"slug"`
	Name            string           `json:"naam"`
	Description     string           `json:"beschrijving,omitempty"`
	Arbocatalogus   string           `json:"arbocatalogus,omitempty"`
	CAO             string           `json:"cao,omitempty"`
	LegalFrameworks []LegalFramework `json:"wettelijkeKaders"`
	RiskCategories  []RiskCategory   `json:"risicoCategorieen"`
}

// LegalFramework references one applicable law article.
type LegalFramework struct {
	Law         string `json:"wet"`
	Article     string `json:"artikel"`
	Description string `json:"beschrijving"`
}

// RiskCategory is one entry of the branch risk taxonomy.
type RiskCategory struct {
	ID           string   `json:"id"`
	Category     string   `json:"categorie"`
	Priority     string   `json:"prioriteit"`
	TypicalRisks []string `json:"typischeRisicos,omitempty"`
}
