package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"accents stripped", "Cabaña Cóndor", "cabana condor"},
		{"punctuation collapsed", "hola!!!  ¿qué tal?", "hola que tal"},
		{"underscores and dashes", "ia_chat - menu", "ia chat menu"},
		{"already normalized", "cabana condor", "cabana condor"},
		{"only punctuation", "¡¿!?", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Habitación Eucalipto",
		"  MENÚ  principal ",
		"SKU-ABC123, por favor",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestAccentVariantsMatch(t *testing.T) {
	assert.Equal(t, Normalize("menú"), Normalize("MENU"))
	assert.Equal(t, Normalize("Tunúpa"), Normalize("tunupa"))
}

func TestOverlap(t *testing.T) {
	a := TokenSet("cabaña cóndor con jacuzzi")
	b := TokenSet("el jacuzzi de la cabana")
	assert.Equal(t, 2, Overlap(a, b))
	assert.Equal(t, 0, Overlap(a, TokenSet("")))
}
