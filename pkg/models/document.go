package models

// Measure timeframe classifications. Missing values are defaulted to
// TimeframeShort during normalization; downstream rendering assumes presence.
const (
	TimeframeImmediate = "direct"
	TimeframeShort     = "kort"
	TimeframeMedium    = "middel"
)

// Priority labels used by risk items, measures, and action plan items.
const (
	PriorityHigh   = "hoog"
	PriorityMedium = "midden"
	PriorityLow    = "laag"
)

// GeneratedDocument is the aggregate output of the generation pipeline: the
// unit persisted on the report and served to the client. JSON field names
// match the document wire format the model is instructed to produce.
type GeneratedDocument struct {
	Summary          string                `json:"samenvatting"`
	CompanyProfile   CompanyProfile        `json:"bedrijfsprofiel"`
	RiskItems        []RiskItem            `json:"risicos"`
	ActionPlan       []ActionPlanItem      `json:"planVanAanpak,omitempty"`
	LegalObligations []LegalObligationItem `json:"wettelijkeVerplichtingen,omitempty"`
}

// CompanyProfile is the short profile block generated in the first stage.
type CompanyProfile struct {
	Name          string `json:"naam"`
	Branch        string `json:"branche"`
	EmployeeCount int    `json:"aantalMedewerkers"`
	Description   string `json:"beschrijving"`
}

// RiskItem is one identified workplace hazard. After normalization every risk
// item carries at least one valid measure; items violating that are reported
// by the tier-conformance validator.
type RiskItem struct {
	ID              string    `json:"id"`
	Category        string    `json:"categorie"`
	Priority        string    `json:"prioriteit"`
	Score           int       `json:"risicoScore"`
	Description     string    `json:"beschrijving"`
	LegalBasis      string    `json:"wettelijkKader"`
	Hazards         []string  `json:"gevaren"`
	CurrentControls string    `json:"huidigeBeheersing,omitempty"`
	Measures        []Measure `json:"maatregelen"`
}

// Measure is one corrective action tied to a risk item.
type Measure struct {
	Text         string `json:"maatregel"`
	Type         string `json:"type,omitempty"`
	Priority     string `json:"prioriteit,omitempty"`
	Timeframe    string `json:"termijn"`
	Responsible  string `json:"verantwoordelijke,omitempty"`
	CostEstimate string `json:"kostenindicatie,omitempty"`
}

// ActionPlanItem is one numbered entry of the action plan (paid tiers only).
type ActionPlanItem struct {
	Number      int    `json:"nummer"`
	Measure     string `json:"maatregel"`
	Risk        string `json:"risico"`
	Priority    string `json:"prioriteit"`
	Timeframe   string `json:"termijn"`
	Responsible string `json:"verantwoordelijke"`
	Deadline    string `json:"deadline"`
	Status      string `json:"status"`
}

// LegalObligationItem is one entry of the legal obligations checklist
// (top tier only).
type LegalObligationItem struct {
	Obligation  string `json:"verplichting"`
	Statute     string `json:"wet"`
	Status      string `json:"status"`
	Explanation string `json:"toelichting"`
}
