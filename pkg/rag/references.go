package rag

import (
	"sort"
	"strings"

	"github.com/SantiagoCTB/whatsapp-ia/pkg/catalog"
)

// Reference is one retrieval hit offered to the prompt and, when it carries
// an image, to the reply attachments.
type Reference struct {
	Text     string   `json:"text"`
	Page     int      `json:"page,omitempty"`
	Source   string   `json:"source,omitempty"`
	SKUs     []string `json:"skus,omitempty"`
	Entities []string `json:"entities,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	Caption  string   `json:"caption,omitempty"`
	Distance float32  `json:"distance"`
}

// PrioritizeByEntities resorts references by entity relevance when the
// question names a known entity. Raw distance order is kept as the tie-break
// (stable sort) and is left untouched when no entity matches anything.
func PrioritizeByEntities(question string, refs []Reference, ix *catalog.Index) []Reference {
	if ix == nil || len(refs) < 2 {
		return refs
	}
	mentioned := ix.FindInText(question)
	if len(mentioned) == 0 {
		return refs
	}

	scores := make([]int, len(refs))
	any := false
	for i, ref := range refs {
		scores[i] = catalog.ScoreFields(mentioned,
			ref.Text,
			ref.Source,
			ref.Caption,
			strings.Join(ref.SKUs, " "),
		)
		if scores[i] > 0 {
			any = true
		}
	}
	if !any {
		return refs
	}

	order := make([]int, len(refs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	sorted := make([]Reference, len(refs))
	for i, idx := range order {
		sorted[i] = refs[idx]
	}
	return sorted
}
