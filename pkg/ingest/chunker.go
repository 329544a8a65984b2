package ingest

import (
	"regexp"
	"strings"

	"github.com/SantiagoCTB/whatsapp-ia/pkg/catalog"
)

var (
	skuPattern    = regexp.MustCompile(`(?i)\bSKU[:\s-]*([A-Z0-9-]{3,})\b`)
	bulletPattern = regexp.MustCompile(`^\s*([•·▪‣*-]\s+|\d+[.)]\s+)`)
)

// ChunkText splits raw page text into catalog chunks. Boundaries are blank
// lines and bullet markers; a line that mentions a known entity name also
// forces a boundary so each product tends to start its own chunk.
func ChunkText(text string, entities *catalog.Index) []string {
	lines := strings.Split(text, "\n")

	var chunks []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(current, "\n"))
		current = current[:0]
		if joined != "" {
			chunks = append(chunks, joined)
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if bulletPattern.MatchString(line) || (len(current) > 0 && mentionsEntity(trimmed, entities)) {
			flush()
		}
		current = append(current, trimmed)
	}
	flush()

	return chunks
}

func mentionsEntity(line string, entities *catalog.Index) bool {
	if entities == nil {
		return false
	}
	return len(entities.FindInText(line)) > 0
}

// ExtractSKUs returns the distinct SKU-like tokens of text, uppercased, in
// order of first appearance.
func ExtractSKUs(text string) []string {
	matches := skuPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var skus []string
	for _, m := range matches {
		sku := strings.ToUpper(strings.TrimSpace(m[1]))
		if sku == "" {
			continue
		}
		if _, dup := seen[sku]; dup {
			continue
		}
		seen[sku] = struct{}{}
		skus = append(skus, sku)
	}
	return skus
}

// EntityNames lists the canonical entities a chunk mentions.
func EntityNames(text string, entities *catalog.Index) []string {
	if entities == nil {
		return nil
	}
	found := entities.FindInText(text)
	if len(found) == 0 {
		return nil
	}
	names := make([]string, len(found))
	for i, e := range found {
		names[i] = e.Name
	}
	return names
}
