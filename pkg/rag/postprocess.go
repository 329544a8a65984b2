package rag

import (
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"
)

var sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)

// limitAnswer bounds the reply to maxSentences sentences and maxChars
// characters, trimming at a word boundary and appending an ellipsis when the
// cut lands mid-thought.
func limitAnswer(text string, maxSentences, maxChars int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if maxSentences > 0 {
		sentences := splitSentences(text)
		if len(sentences) > maxSentences {
			text = strings.TrimSpace(strings.Join(sentences[:maxSentences], " "))
		}
	}

	if maxChars > 0 {
		runes := []rune(text)
		if len(runes) > maxChars {
			cut := string(runes[:maxChars])
			if idx := strings.LastIndex(cut, " "); idx > 0 {
				cut = cut[:idx]
			}
			text = strings.TrimRight(cut, " ,;:-") + "…"
		}
	}
	return text
}

func splitSentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err == nil {
		raw := doc.Sentences()
		sentences := make([]string, 0, len(raw))
		for _, s := range raw {
			if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
				sentences = append(sentences, trimmed)
			}
		}
		if len(sentences) > 0 {
			return sentences
		}
	}

	// Segmenter failure falls back to a naive split, keeping punctuation.
	parts := strings.Split(sentenceBoundary.ReplaceAllString(text, "$1\n"), "\n")
	var sentences []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}
