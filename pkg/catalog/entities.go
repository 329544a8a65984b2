// Package catalog holds the canonical product/room vocabulary used to
// disambiguate OCR noise and to score retrieval references.
package catalog

import (
	"strings"

	"github.com/SantiagoCTB/whatsapp-ia/pkg/normalize"
)

// Generic words that name a category rather than a product. They never count
// as distinctive keywords on their own.
var genericTokens = map[string]struct{}{
	"cabana":       {},
	"habitacion":   {},
	"habitaciones": {},
	"suite":        {},
}

var defaultEntityNames = []string{
	"Cabaña Cóndor",
	"Cabaña Mamaquilla",
	"Cabaña Tunúpa",
	"Cabaña Taypi",
	"Cabaña Inti",
	"Habitación Eucalipto",
	"Habitación Pino",
}

// Entity is one canonical catalog name plus its normalized matching forms.
type Entity struct {
	Name       string
	Normalized string
	Tokens     []string
	Keywords   map[string]struct{}
}

// Index is an immutable set of entities built once at startup.
type Index struct {
	entities []Entity
}

// NewIndex builds an index from canonical names. Empty names are skipped.
func NewIndex(names []string) *Index {
	entities := make([]Entity, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		normalized := normalize.Normalize(name)
		tokens := strings.Fields(normalized)
		keywords := make(map[string]struct{})
		for _, t := range tokens {
			if _, generic := genericTokens[t]; !generic {
				keywords[t] = struct{}{}
			}
		}
		entities = append(entities, Entity{
			Name:       name,
			Normalized: normalized,
			Tokens:     tokens,
			Keywords:   keywords,
		})
	}
	return &Index{entities: entities}
}

// DefaultIndex returns the built-in catalog vocabulary.
func DefaultIndex() *Index {
	return NewIndex(defaultEntityNames)
}

// Entities returns the canonical entities in index order.
func (ix *Index) Entities() []Entity {
	return ix.entities
}

// Names returns the canonical display names in index order.
func (ix *Index) Names() []string {
	names := make([]string, len(ix.entities))
	for i, e := range ix.entities {
		names[i] = e.Name
	}
	return names
}

// FindInText returns every entity mentioned in text, in index order.
func (ix *Index) FindInText(text string) []Entity {
	normalized := normalize.Normalize(text)
	if normalized == "" {
		return nil
	}
	tokens := normalize.TokenSet(text)

	var found []Entity
	for _, e := range ix.entities {
		if matches(e, normalized, tokens) {
			found = append(found, e)
		}
	}
	return found
}

// Score rates how strongly text refers to e: 3 is a full match (name
// substring or all distinctive keywords present), 2 a partial one (all name
// tokens present, or any keyword overlap), 0 no relation.
func Score(e Entity, text string) int {
	normalized := normalize.Normalize(text)
	if normalized == "" {
		return 0
	}
	tokens := normalize.TokenSet(text)

	if strings.Contains(normalized, e.Normalized) {
		return 3
	}
	if len(e.Keywords) > 0 && containsAll(tokens, e.Keywords) {
		return 3
	}
	if containsAllSlice(tokens, e.Tokens) {
		return 2
	}
	for kw := range e.Keywords {
		if _, ok := tokens[kw]; ok {
			return 2
		}
	}
	return 0
}

// ScoreFields returns the best score any of the entities reaches against any
// of the fields. Stops early at a full match.
func ScoreFields(entities []Entity, fields ...string) int {
	best := 0
	for _, field := range fields {
		if field == "" {
			continue
		}
		for _, e := range entities {
			if s := Score(e, field); s > best {
				best = s
				if best >= 3 {
					return best
				}
			}
		}
	}
	return best
}

func matches(e Entity, normalized string, tokens map[string]struct{}) bool {
	if strings.Contains(normalized, e.Normalized) {
		return true
	}
	if len(e.Keywords) > 0 && containsAll(tokens, e.Keywords) {
		return true
	}
	if containsAllSlice(tokens, e.Tokens) {
		return true
	}
	for kw := range e.Keywords {
		if _, ok := tokens[kw]; ok {
			return true
		}
	}
	return false
}

func containsAll(set map[string]struct{}, want map[string]struct{}) bool {
	for t := range want {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

func containsAllSlice(set map[string]struct{}, want []string) bool {
	for _, t := range want {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}
