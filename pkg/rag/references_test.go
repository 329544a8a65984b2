package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SantiagoCTB/whatsapp-ia/pkg/catalog"
)

func TestPrioritizeByEntities(t *testing.T) {
	ix := catalog.NewIndex([]string{"Cabaña Cóndor", "Cabaña Inti"})

	refs := []Reference{
		{Text: "Piscina temperada del complejo", Distance: 0.1},
		{Text: "Cabaña Cóndor con jacuzzi privado", Distance: 0.9},
	}

	sorted := PrioritizeByEntities("¿qué tiene la cabaña cóndor?", refs, ix)
	require.Len(t, sorted, 2)
	assert.Contains(t, sorted[0].Text, "Cóndor")
	assert.Contains(t, sorted[1].Text, "Piscina")
}

func TestPrioritizeKeepsOrderWithoutEntityInQuestion(t *testing.T) {
	ix := catalog.DefaultIndex()
	refs := []Reference{
		{Text: "Cabaña Inti"},
		{Text: "Cabaña Cóndor"},
	}

	sorted := PrioritizeByEntities("¿tienen estacionamiento?", refs, ix)
	assert.Equal(t, refs, sorted)
}

func TestPrioritizeKeepsOrderWhenNoReferenceMatches(t *testing.T) {
	ix := catalog.DefaultIndex()
	refs := []Reference{
		{Text: "desayuno incluido"},
		{Text: "check-in a las 15:00"},
	}

	sorted := PrioritizeByEntities("precio de la cabaña cóndor", refs, ix)
	assert.Equal(t, refs, sorted)
}

func TestPrioritizeStableAmongEqualScores(t *testing.T) {
	ix := catalog.DefaultIndex()
	refs := []Reference{
		{Text: "Cabaña Cóndor opción A"},
		{Text: "Cabaña Cóndor opción B"},
		{Text: "sin relación"},
	}

	sorted := PrioritizeByEntities("cabaña cóndor", refs, ix)
	assert.Equal(t, "Cabaña Cóndor opción A", sorted[0].Text)
	assert.Equal(t, "Cabaña Cóndor opción B", sorted[1].Text)
	assert.Equal(t, "sin relación", sorted[2].Text)
}

func TestPrioritizeScoresSourceField(t *testing.T) {
	ix := catalog.NewIndex([]string{"Cabaña Cóndor"})
	refs := []Reference{
		{Text: "ficha técnica", SKUs: []string{"GEN-01"}},
		{Text: "ficha técnica", Source: "catalogo condor"},
	}

	sorted := PrioritizeByEntities("fotos del condor", refs, ix)
	assert.Equal(t, "catalogo condor", sorted[0].Source)
}
