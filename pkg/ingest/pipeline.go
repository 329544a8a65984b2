// Package ingest rebuilds the catalog index from PDFs, plain text, or combo
// packages. Every run replaces the previous index wholesale; a run that
// yields zero usable chunks fails with a reason code instead of publishing
// an empty catalog.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/SantiagoCTB/whatsapp-ia/pkg/catalog"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/embedding"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/vectorstore"
)

// Reason codes surfaced on terminal ingestion failures.
const (
	ReasonEmptyInput       = "empty_input"
	ReasonMissingLibs      = "missing_libs"
	ReasonTesseractMissing = "tesseract_missing"
	ReasonNoBackend        = "no_backend"
	ReasonOcrFailed        = "ocr_failed"
	ReasonExtractionFailed = "extraction_failed"
	ReasonNoChunks         = "no_chunks"
)

// ReasonError is a terminal ingestion failure with a user-facing code.
type ReasonError struct {
	Reason string
	Msg    string
}

func (e *ReasonError) Error() string {
	if e.Msg == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Msg)
}

func reasonErr(reason, format string, args ...interface{}) error {
	return &ReasonError{Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the reason code, or "extraction_failed" for plain errors.
func ReasonOf(err error) string {
	var re *ReasonError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ReasonExtractionFailed
}

// Stats summarizes a successful run.
type Stats struct {
	Chunks  int      `json:"chunks"`
	Sources []string `json:"sources"`
	Pages   int      `json:"pages"`
}

// CatalogStore is the persistence the pipeline touches after a rebuild.
type CatalogStore interface {
	UpdateCatalog(ctx context.Context, basePath string, stats []byte) error

	// FastForwardCursor moves the AI cursor to the newest message so the
	// worker never answers backlog against a freshly-built catalog.
	FastForwardCursor(ctx context.Context) error
}

type Pipeline struct {
	Embedder       embedding.EmbeddingProvider
	Entities       *catalog.Index
	Extractor      *Extractor
	Renderer       *PageRenderer
	Store          CatalogStore
	BasePath       string
	ImageURLPrefix string
	BatchSize      int
	Similarity     float64
}

// IngestPath ingests a file or directory. Directories are probed for a combo
// descriptor first, then for a single PDF or text file.
func (p *Pipeline) IngestPath(ctx context.Context, path, sourceName string) (*Stats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, reasonErr(ReasonEmptyInput, "source not found: %v", err)
	}
	if info.IsDir() {
		return p.ingestDir(ctx, path, sourceName)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return p.IngestPDF(ctx, path, sourceName)
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, reasonErr(ReasonEmptyInput, "read text: %v", err)
		}
		return p.IngestText(ctx, string(data), sourceName)
	default:
		return nil, reasonErr(ReasonEmptyInput, "unsupported file type %q", filepath.Ext(path))
	}
}

// IngestPDF runs the per-page extraction cascade and indexes the results.
func (p *Pipeline) IngestPDF(ctx context.Context, pdfPath, sourceName string) (*Stats, error) {
	pages, err := PageCount(pdfPath)
	if err != nil {
		return nil, reasonErr(ReasonExtractionFailed, "page count: %v", err)
	}
	if pages == 0 {
		return nil, reasonErr(ReasonEmptyInput, "pdf has no pages")
	}

	var chunks []catalog.Chunk
	lastReason := ReasonNoChunks
	for page := 1; page <= pages; page++ {
		extracted, reason := p.Extractor.ExtractPage(ctx, pdfPath, page)
		if reason != "" {
			lastReason = reason
			log.Printf("[WARN] page %d extraction failed (%s)", page, reason)
			continue
		}

		relPath, imageURL := p.pageImage(ctx, pdfPath, page)
		for _, text := range ChunkText(extracted.Text, p.Entities) {
			chunks = append(chunks, catalog.Chunk{
				Page:         page,
				Ordinal:      len(chunks),
				Text:         text,
				Source:       sourceName,
				SKUs:         ExtractSKUs(text),
				Entities:     EntityNames(text, p.Entities),
				Backend:      extracted.Backend,
				ImageRelPath: relPath,
				ImageURL:     imageURL,
			})
		}
	}

	if len(chunks) == 0 {
		return nil, reasonErr(lastReason, "no usable text in %d pages", pages)
	}
	return p.commit(ctx, chunks)
}

// IngestText indexes a plain-text catalog. No pages, no images.
func (p *Pipeline) IngestText(ctx context.Context, text, sourceName string) (*Stats, error) {
	if strings.TrimSpace(text) == "" {
		return nil, reasonErr(ReasonEmptyInput, "empty text input")
	}

	var chunks []catalog.Chunk
	for _, piece := range ChunkText(text, p.Entities) {
		chunks = append(chunks, catalog.Chunk{
			Ordinal:  len(chunks),
			Text:     piece,
			Source:   sourceName,
			SKUs:     ExtractSKUs(piece),
			Entities: EntityNames(piece, p.Entities),
			Backend:  BackendPlainText,
		})
	}
	if len(chunks) == 0 {
		return nil, reasonErr(ReasonNoChunks, "text produced no chunks")
	}
	return p.commit(ctx, chunks)
}

// IngestCombo pairs curated text entries with PDF page images.
func (p *Pipeline) IngestCombo(ctx context.Context, text, pdfPath, sourceName string) (*Stats, error) {
	if strings.TrimSpace(text) == "" {
		return nil, reasonErr(ReasonEmptyInput, "empty combo text")
	}

	pageInfos, err := p.extractComboPages(ctx, pdfPath)
	if err != nil {
		return nil, err
	}

	entries := ChunkText(text, p.Entities)
	if len(entries) == 0 {
		return nil, reasonErr(ReasonNoChunks, "combo text produced no entries")
	}

	matcher := &comboMatcher{
		entities:   p.Entities,
		pages:      pageInfos,
		similarity: p.Similarity,
	}

	var chunks []catalog.Chunk
	for i, entry := range entries {
		matched := matcher.match(entry, i)
		chunk := catalog.Chunk{
			Ordinal:  len(chunks),
			Text:     entry,
			Source:   sourceName,
			SKUs:     ExtractSKUs(entry),
			Entities: EntityNames(entry, p.Entities),
			Backend:  BackendCombo,
		}
		if matched != nil {
			chunk.Page = matched.Page
			chunk.ImageRelPath = matched.ImageRelPath
			chunk.ImageURL = matched.ImageURL
		}
		chunks = append(chunks, chunk)
	}
	return p.commit(ctx, chunks)
}

func (p *Pipeline) ingestDir(ctx context.Context, dir, sourceName string) (*Stats, error) {
	if textPath, pdfPath, ok := findComboPair(dir); ok {
		data, err := os.ReadFile(textPath)
		if err != nil {
			return nil, reasonErr(ReasonEmptyInput, "read combo text: %v", err)
		}
		return p.IngestCombo(ctx, string(data), pdfPath, sourceName)
	}

	pdfs, texts := listByExt(dir)
	switch {
	case len(pdfs) == 1 && len(texts) == 1:
		data, err := os.ReadFile(texts[0])
		if err != nil {
			return nil, reasonErr(ReasonEmptyInput, "read combo text: %v", err)
		}
		return p.IngestCombo(ctx, string(data), pdfs[0], sourceName)
	case len(pdfs) == 1:
		return p.IngestPDF(ctx, pdfs[0], sourceName)
	case len(texts) == 1:
		data, err := os.ReadFile(texts[0])
		if err != nil {
			return nil, reasonErr(ReasonEmptyInput, "read text: %v", err)
		}
		return p.IngestText(ctx, string(data), sourceName)
	default:
		return nil, reasonErr(ReasonEmptyInput, "directory holds no single ingestable source")
	}
}

func (p *Pipeline) extractComboPages(ctx context.Context, pdfPath string) ([]comboPage, error) {
	pages, err := PageCount(pdfPath)
	if err != nil {
		return nil, reasonErr(ReasonExtractionFailed, "page count: %v", err)
	}

	var infos []comboPage
	for page := 1; page <= pages; page++ {
		extracted, reason := p.Extractor.ExtractPage(ctx, pdfPath, page)
		relPath, imageURL := p.pageImage(ctx, pdfPath, page)
		info := comboPage{
			Page:         page,
			ImageRelPath: relPath,
			ImageURL:     imageURL,
		}
		if reason == "" {
			info.Text = extracted.Text
		}
		infos = append(infos, info)
	}
	if len(infos) == 0 {
		return nil, reasonErr(ReasonEmptyInput, "combo pdf has no pages")
	}
	return infos, nil
}

// pageImage renders the citation raster best-effort; a missing image never
// fails ingestion.
func (p *Pipeline) pageImage(ctx context.Context, pdfPath string, page int) (relPath, imageURL string) {
	if p.Renderer == nil {
		return "", ""
	}
	if _, err := p.Renderer.Render(ctx, pdfPath, page); err != nil {
		log.Printf("[WARN] page %d image render failed: %v", page, err)
		return "", ""
	}
	rel, err := p.Renderer.RelPath(pdfPath, page)
	if err != nil {
		return "", ""
	}
	url := ""
	if p.ImageURLPrefix != "" {
		url = strings.TrimRight(p.ImageURLPrefix, "/") + "/" + filepath.ToSlash(rel)
	}
	return rel, url
}

// commit embeds all chunks in batches, writes the artifact pair atomically
// and records the new catalog in settings.
func (p *Pipeline) commit(ctx context.Context, chunks []catalog.Chunk) (*Stats, error) {
	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var vectors [][]float32
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.Embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", start/batchSize, err)
		}
		vectors = append(vectors, batch...)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(vectors), len(chunks))
	}

	index := vectorstore.NewIndex(len(vectors[0]))
	if err := index.Add(vectors...); err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	if err := vectorstore.SaveFile(p.BasePath, index, chunks); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}

	stats := buildStats(chunks)
	if p.Store != nil {
		statsBytes, err := json.Marshal(stats)
		if err == nil {
			if err := p.Store.UpdateCatalog(ctx, p.BasePath, statsBytes); err != nil {
				log.Printf("[WARN] catalog settings update failed: %v", err)
			}
		}
		if err := p.Store.FastForwardCursor(ctx); err != nil {
			log.Printf("[WARN] cursor fast-forward failed: %v", err)
		}
	}
	return stats, nil
}

func buildStats(chunks []catalog.Chunk) *Stats {
	sourceSet := make(map[string]struct{})
	pageSet := make(map[int]struct{})
	for _, c := range chunks {
		if c.Source != "" {
			sourceSet[c.Source] = struct{}{}
		}
		if c.Page > 0 {
			pageSet[c.Page] = struct{}{}
		}
	}
	sources := make([]string, 0, len(sourceSet))
	for s := range sourceSet {
		sources = append(sources, s)
	}
	return &Stats{Chunks: len(chunks), Sources: sources, Pages: len(pageSet)}
}

// Descriptor names probed inside a combo directory, in order.
var descriptorNames = []string{"descriptor.json", "combo.json", "catalog.json", "metadata.json"}

type comboDescriptor struct {
	PDF  string `json:"pdf"`
	Text string `json:"text"`
}

func findComboPair(dir string) (textPath, pdfPath string, ok bool) {
	candidates := append([]string{}, descriptorNames...)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", "", false
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".json") && !contains(candidates, name) {
			candidates = append(candidates, name)
		}
	}

	for _, name := range candidates {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var desc comboDescriptor
		if err := json.Unmarshal(data, &desc); err != nil {
			continue
		}
		if desc.PDF == "" || desc.Text == "" {
			continue
		}
		return filepath.Join(dir, desc.Text), filepath.Join(dir, desc.PDF), true
	}
	return "", "", false
}

func listByExt(dir string) (pdfs, texts []string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(dir, e.Name())
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".pdf":
			pdfs = append(pdfs, full)
		case ".txt", ".md":
			texts = append(texts, full)
		}
	}
	return pdfs, texts
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
