package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SantiagoCTB/whatsapp-ia/pkg/catalog"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/vectorstore"
)

type stubEmbedder struct {
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), float32(i), 1}
	}
	return vectors, nil
}

type stubStore struct {
	basePath    string
	stats       []byte
	fastForward int
}

func (s *stubStore) UpdateCatalog(_ context.Context, basePath string, stats []byte) error {
	s.basePath = basePath
	s.stats = stats
	return nil
}

func (s *stubStore) FastForwardCursor(_ context.Context) error {
	s.fastForward++
	return nil
}

func TestIngestTextRoundTrip(t *testing.T) {
	base := filepath.Join(t.TempDir(), "catalog_index")
	store := &stubStore{}
	pipeline := &Pipeline{
		Embedder: &stubEmbedder{},
		Entities: catalog.DefaultIndex(),
		Store:    store,
		BasePath: base,
	}

	text := "Cabaña Cóndor con jacuzzi. SKU: CON-01\n\nCabaña Inti para dos personas"
	stats, err := pipeline.IngestText(context.Background(), text, "catalogo-2026")
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, []string{"catalogo-2026"}, stats.Sources)
	assert.Equal(t, 1, store.fastForward)
	assert.Equal(t, base, store.basePath)

	var chunks []catalog.Chunk
	index, _, err := vectorstore.LoadFile(base, &chunks)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 2, index.Len())

	assert.Equal(t, "catalogo-2026", chunks[0].Source)
	assert.Equal(t, BackendPlainText, chunks[0].Backend)
	assert.Equal(t, []string{"CON-01"}, chunks[0].SKUs)
	assert.Equal(t, []string{"Cabaña Cóndor"}, chunks[0].Entities)
	assert.Equal(t, []string{"Cabaña Inti"}, chunks[1].Entities)
}

func TestIngestTextEmptyFails(t *testing.T) {
	pipeline := &Pipeline{Embedder: &stubEmbedder{}}

	_, err := pipeline.IngestText(context.Background(), "   \n ", "x")
	require.Error(t, err)
	assert.Equal(t, ReasonEmptyInput, ReasonOf(err))
}

func TestIngestTextBatchesEmbeddings(t *testing.T) {
	base := filepath.Join(t.TempDir(), "idx")
	embedder := &stubEmbedder{}
	pipeline := &Pipeline{
		Embedder:  embedder,
		BasePath:  base,
		BatchSize: 1,
	}

	_, err := pipeline.IngestText(context.Background(), "uno\n\ndos\n\ntres", "src")
	require.NoError(t, err)
	assert.Equal(t, 3, embedder.calls)
}

func TestComboMatcherCascade(t *testing.T) {
	entities := catalog.NewIndex([]string{"Cabaña Cóndor", "Cabaña Inti"})
	pages := []comboPage{
		{Page: 1, Text: "Página de portada genérica sin productos"},
		{Page: 2, Text: "Cabaña Cóndor vista al valle", ImageRelPath: "h/page_0002.jpg"},
		{Page: 3, Text: "Ficha SKU: INT-77 detalles", ImageRelPath: "h/page_0003.jpg"},
	}
	m := &comboMatcher{entities: entities, pages: pages, similarity: 0.6}

	byEntity := m.match("Cabaña Cóndor con jacuzzi privado", 0)
	require.NotNil(t, byEntity)
	assert.Equal(t, 2, byEntity.Page)

	bySKU := m.match("Habitación doble SKU: INT-77 promo", 0)
	require.NotNil(t, bySKU)
	assert.Equal(t, 3, bySKU.Page)

	positional := m.match("texto sin ninguna señal utilizable", 99)
	require.NotNil(t, positional)
	assert.Equal(t, 3, positional.Page)
}
