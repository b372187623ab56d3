package models

import "strings"

// IntakeRecord is the immutable snapshot of the user's intake answers. It is
// written once when the report is created and never mutated afterwards; the
// prompt builder reads it, nothing else touches it.
type IntakeRecord struct {
	CompanyName         string              `json:"bedrijfsnaam"`
	Branch              string              `json:"branche"`
	EmployeeCount       int                 `json:"aantalMedewerkers"`
	LocationCount       int                 `json:"aantalLocaties"`
	FirstAidPresent     bool                `json:"bhvAanwezig"`
	FirstAidCount       string              `json:"aantalBhvers,omitempty"`
	PreventionOfficer   bool                `json:"preventiemedewerker"`
	PriorAssessment     bool                `json:"eerderRie"`
	PriorAssessmentNote string              `json:"laatsteRie,omitempty"`
	Workplace           WorkplaceConditions `json:"werkplek"`
}

// BranchFallback is the catch-all branch for companies outside the known
// sectors. It always has a knowledge document.
const BranchFallback = "overig"

// KnownBranches are the sector keys with dedicated knowledge documents, in
// intake-form order.
var KnownBranches = []string{
	"beveiliging",
	"horeca",
	"bouw",
	"kinderopvang",
	"schoonmaak",
	"detailhandel",
	"transport",
	"zorg",
	"kantoor",
	BranchFallback,
}

// NormalizeBranch lowercases a submitted branch key and maps unknown values
// to the fallback branch.
func NormalizeBranch(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, b := range KnownBranches {
		if s == b {
			return b
		}
	}
	return BranchFallback
}

// WorkplaceConditions captures the free-text/boolean workplace sub-form.
type WorkplaceConditions struct {
	ActivityTypes       []string `json:"typeWerkzaamheden,omitempty"`
	HazardousSubstances bool     `json:"gevaarlijkeStoffen"`
	ScreenWork          bool     `json:"beeldschermwerk"`
	PhysicalLabor       bool     `json:"fysiekWerk"`
	OutdoorWork         bool     `json:"buitenwerk"`
	NightWork           bool     `json:"nachtwerk"`
	LoneWork            bool     `json:"alleenWerken"`
}
