// Package conform is the boundary between untyped model output and the typed
// document: it coerces the model's drifting schemas into the canonical shape
// and validates the result against tier minimums. No untyped data flows past
// this package.
package conform

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/riegen-io/riegen/pkg/models"
)

// Field names the model uses interchangeably for a measure's text and
// timeframe across response variations.
var (
	measureTextKeys      = []string{"maatregel", "beschrijving", "omschrijving", "actie", "tekst", "description", "action", "text"}
	measureTimeframeKeys = []string{"termijn", "deadline", "planning", "streefdatum"}
	measureNestedKeys    = []string{"maatregelen", "measures", "items"}
)

// Placeholder phrases that mean "no measures"; entries resolving to one of
// these are dropped rather than counted.
var placeholderTexts = map[string]bool{
	"geen":                   true,
	"geen maatregelen":       true,
	"geen maatregelen nodig": true,
	"n.v.t.":                 true,
	"nvt":                    true,
	"niet van toepassing":    true,
	"-":                      true,
	"none":                   true,
	"no measures":            true,
}

var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)])\s*`)

// rawRiskItem mirrors models.RiskItem with the fields the model gets wrong
// left untyped.
type rawRiskItem struct {
	ID              string          `json:"id"`
	Category        string          `json:"categorie"`
	Priority        string          `json:"prioriteit"`
	Score           json.Number     `json:"risicoScore"`
	Description     string          `json:"beschrijving"`
	LegalBasis      string          `json:"wettelijkKader"`
	Hazards         []string        `json:"gevaren"`
	CurrentControls string          `json:"huidigeBeheersing"`
	Measures        json.RawMessage `json:"maatregelen"`
}

// DecodeRiskItems decodes a normalized JSON payload into canonical risk
// items. The payload may be a bare array or an object wrapping the array
// under "risicos". Measures are flattened through NormalizeMeasures.
func DecodeRiskItems(data []byte) ([]models.RiskItem, error) {
	var raw []rawRiskItem
	if err := decodeNumeric(data, &raw); err != nil {
		var wrapped struct {
			Risks []rawRiskItem `json:"risicos"`
		}
		if err2 := decodeNumeric(data, &wrapped); err2 != nil || wrapped.Risks == nil {
			return nil, fmt.Errorf("decoding risk items: %w", err)
		}
		raw = wrapped.Risks
	}

	items := make([]models.RiskItem, 0, len(raw))
	for i, r := range raw {
		item := models.RiskItem{
			ID:              r.ID,
			Category:        strings.TrimSpace(r.Category),
			Priority:        strings.TrimSpace(r.Priority),
			Description:     strings.TrimSpace(r.Description),
			LegalBasis:      strings.TrimSpace(r.LegalBasis),
			Hazards:         r.Hazards,
			CurrentControls: strings.TrimSpace(r.CurrentControls),
			Measures:        NormalizeMeasures(decodeAny(r.Measures)),
		}
		if item.ID == "" {
			item.ID = fmt.Sprintf("risico_%d", i+1)
		}
		if score, err := r.Score.Int64(); err == nil {
			item.Score = int(score)
		} else if f, err := r.Score.Float64(); err == nil {
			item.Score = int(f)
		}
		items = append(items, item)
	}
	return items, nil
}

// NormalizeMeasures flattens the measure shapes the model produces — a single
// string, a list of strings, an object, or an object nesting further measure
// lists — into a uniform measure list. Entries whose resolved text is empty
// or a "no measures" placeholder are dropped. Timeframe is always populated
// afterwards; missing values default to TimeframeShort.
func NormalizeMeasures(v any) []models.Measure {
	var out []models.Measure
	flattenMeasures(v, &out)
	return out
}

func flattenMeasures(v any, out *[]models.Measure) {
	switch m := v.(type) {
	case nil:
		return
	case string:
		for _, text := range splitMeasureText(m) {
			appendMeasure(out, models.Measure{Text: text})
		}
	case []any:
		for _, item := range m {
			flattenMeasures(item, out)
		}
	case map[string]any:
		// An object may itself nest a measure list.
		for _, key := range measureNestedKeys {
			if nested, ok := m[key]; ok {
				flattenMeasures(nested, out)
				return
			}
		}

		text := probeString(m, measureTextKeys)
		for i, part := range splitMeasureText(text) {
			measure := models.Measure{
				Text:      part,
				Timeframe: probeString(m, measureTimeframeKeys),
			}
			// Remaining attributes only apply to the first split part.
			if i == 0 {
				measure.Type, _ = m["type"].(string)
				measure.Priority, _ = m["prioriteit"].(string)
				measure.Responsible, _ = m["verantwoordelijke"].(string)
				measure.CostEstimate, _ = m["kostenindicatie"].(string)
			}
			appendMeasure(out, measure)
		}
	}
}

func appendMeasure(out *[]models.Measure, m models.Measure) {
	m.Text = strings.TrimSpace(m.Text)
	if m.Text == "" || placeholderTexts[strings.ToLower(m.Text)] {
		return
	}
	if m.Timeframe == "" {
		m.Timeframe = models.TimeframeShort
	}
	*out = append(*out, m)
}

// splitMeasureText splits a free-form measure string on newlines, semicolons,
// and bullet/numbered-list markers into discrete measure texts.
func splitMeasureText(s string) []string {
	var parts []string
	for _, line := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == ';'
	}) {
		line = bulletPrefix.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line != "" {
			parts = append(parts, line)
		}
	}
	return parts
}

func probeString(m map[string]any, keys []string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func decodeNumeric(data []byte, v any) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	return dec.Decode(v)
}

func decodeAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
