// Package knowledge loads branch-specific legal/context documents used to
// ground generation.
package knowledge

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/riegen-io/riegen/pkg/models"
)

// Loader supplies knowledge documents by branch key. Load never fails: when
// no branch-specific document exists a generic built-in one is returned.
type Loader interface {
	Load(branch string) *models.KnowledgeDocument
	Branches() []string
}

// FileLoader reads knowledge documents from a directory of <branch>.json
// files and caches them in memory for the process lifetime. Safe for
// concurrent use: entries are immutable once set, so a race that populates
// the same key twice is harmless.
type FileLoader struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*models.KnowledgeDocument
}

// NewFileLoader creates a FileLoader reading from dir.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{
		dir:   dir,
		cache: make(map[string]*models.KnowledgeDocument),
	}
}

// Load returns the knowledge document for branch, populating the cache on
// first use. Missing or malformed files fall back to the generic document,
// which is not cached so a redeployed file is picked up without a restart.
func (l *FileLoader) Load(branch string) *models.KnowledgeDocument {
	l.mu.RLock()
	doc, ok := l.cache[branch]
	l.mu.RUnlock()
	if ok {
		return doc
	}

	data, err := os.ReadFile(filepath.Join(l.dir, branch+".json"))
	if err != nil {
		return Generic(branch)
	}

	var parsed models.KnowledgeDocument
	if err := json.Unmarshal(data, &parsed); err != nil {
		slog.Warn("malformed knowledge document, using generic fallback",
			"branch", branch, "error", err)
		return Generic(branch)
	}

	l.mu.Lock()
	l.cache[branch] = &parsed
	l.mu.Unlock()

	return &parsed
}

// Branches lists the branch keys with a document on disk.
func (l *FileLoader) Branches() []string {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil
	}
	var branches []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			branches = append(branches, name)
		}
	}
	return branches
}

// Generic returns the built-in fallback document for branches without a
// dedicated knowledge file.
func Generic(branch string) *models.KnowledgeDocument {
	return &models.KnowledgeDocument{
		Slug:        branch,
		Name:        capitalize(branch),
		Description: "Generieke kennisbank voor de " + branch,
		LegalFrameworks: []models.LegalFramework{
			{Law: "Arbowet", Article: "Artikel 5", Description: "Verplichting tot het opstellen van een RI&E"},
			{Law: "Arbowet", Article: "Artikel 8", Description: "Voorlichting en onderricht"},
			{Law: "Arbobesluit", Article: "Diverse", Description: "Specifieke arbeidsomstandigheden"},
		},
		RiskCategories: []models.RiskCategory{
			{ID: "fysieke_belasting", Category: "Fysieke belasting", Priority: models.PriorityMedium,
				TypicalRisks: []string{"Tillen", "Lang staan/zitten", "Repeterende bewegingen"}},
			{ID: "psychosociale_belasting", Category: "Psychosociale arbeidsbelasting", Priority: models.PriorityHigh,
				TypicalRisks: []string{"Werkdruk", "Agressie", "Ongewenst gedrag"}},
			{ID: "beeldschermwerk", Category: "Beeldschermwerk", Priority: models.PriorityMedium,
				TypicalRisks: []string{"RSI", "Oogklachten", "Verkeerde werkhouding"}},
			{ID: "bhv", Category: "BHV en noodprocedures", Priority: models.PriorityHigh,
				TypicalRisks: []string{"Onvoldoende BHV", "Geen ontruimingsplan"}},
			{ID: "gevaarlijke_stoffen", Category: "Gevaarlijke stoffen", Priority: models.PriorityMedium,
				TypicalRisks: []string{"Blootstelling", "Opslag", "Etikettering"}},
			{ID: "klimaat", Category: "Binnenklimaat", Priority: models.PriorityLow,
				TypicalRisks: []string{"Temperatuur", "Ventilatie", "Luchtvochtigheid"}},
		},
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

var _ Loader = (*FileLoader)(nil)
