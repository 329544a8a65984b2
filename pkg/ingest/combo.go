package ingest

import (
	"github.com/pmezard/go-difflib/difflib"

	"github.com/SantiagoCTB/whatsapp-ia/pkg/catalog"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/normalize"
)

// comboPage is one PDF page offered as an image donor for curated entries.
type comboPage struct {
	Page         int
	Text         string
	ImageRelPath string
	ImageURL     string
}

// comboMatcher resolves which PDF page a curated entry borrows its image
// from. Cascade: shared entities (best score, then nearest page), shared
// SKU, exact normalized text, fuzzy similarity, positional fallback.
type comboMatcher struct {
	entities   *catalog.Index
	pages      []comboPage
	similarity float64
}

func (m *comboMatcher) match(entry string, ordinal int) *comboPage {
	if page := m.byEntities(entry); page != nil {
		return page
	}
	if page := m.bySKU(entry); page != nil {
		return page
	}
	if page := m.byExactText(entry); page != nil {
		return page
	}
	if page := m.byFuzzyText(entry); page != nil {
		return page
	}
	return m.byPosition(ordinal)
}

func (m *comboMatcher) byEntities(entry string) *comboPage {
	if m.entities == nil {
		return nil
	}
	mentioned := m.entities.FindInText(entry)
	if len(mentioned) == 0 {
		return nil
	}

	best := -1
	bestScore := 0
	for i, page := range m.pages {
		if page.Text == "" {
			continue
		}
		score := catalog.ScoreFields(mentioned, page.Text)
		if score == 0 {
			continue
		}
		// Higher score wins; equal score prefers the earlier page, which is
		// also the nearest one given ascending iteration.
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return &m.pages[best]
}

func (m *comboMatcher) bySKU(entry string) *comboPage {
	skus := ExtractSKUs(entry)
	if len(skus) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(skus))
	for _, s := range skus {
		want[s] = struct{}{}
	}
	for i, page := range m.pages {
		for _, s := range ExtractSKUs(page.Text) {
			if _, ok := want[s]; ok {
				return &m.pages[i]
			}
		}
	}
	return nil
}

func (m *comboMatcher) byExactText(entry string) *comboPage {
	normalized := normalize.Normalize(entry)
	if normalized == "" {
		return nil
	}
	for i, page := range m.pages {
		if page.Text != "" && normalize.Normalize(page.Text) == normalized {
			return &m.pages[i]
		}
	}
	return nil
}

func (m *comboMatcher) byFuzzyText(entry string) *comboPage {
	threshold := m.similarity
	if threshold <= 0 {
		threshold = 0.6
	}
	entryTokens := normalize.Tokens(entry)
	if len(entryTokens) == 0 {
		return nil
	}

	best := -1
	bestRatio := 0.0
	for i, page := range m.pages {
		if page.Text == "" {
			continue
		}
		matcher := difflib.NewMatcher(entryTokens, normalize.Tokens(page.Text))
		if ratio := matcher.Ratio(); ratio >= threshold && ratio > bestRatio {
			bestRatio = ratio
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return &m.pages[best]
}

// byPosition maps the nth entry to the nth distinct page, clamped to range.
func (m *comboMatcher) byPosition(ordinal int) *comboPage {
	if len(m.pages) == 0 {
		return nil
	}
	idx := ordinal
	if idx < 0 {
		idx = 0
	}
	if idx >= len(m.pages) {
		idx = len(m.pages) - 1
	}
	return &m.pages[idx]
}
