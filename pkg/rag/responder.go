// Package rag answers catalog questions: nearest-neighbor retrieval over the
// ingested index, entity-aware re-ranking, a grounded prompt and a bounded,
// post-processed reply.
package rag

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SantiagoCTB/whatsapp-ia/pkg/catalog"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/embedding"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/llm"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/normalize"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/vectorstore"
)

// Answer is the responder result. FromCache marks a cache hit.
type Answer struct {
	Text       string      `json:"text"`
	References []Reference `json:"references"`
	FromCache  bool        `json:"from_cache"`
}

// InteractionSink receives best-effort interaction logs.
type InteractionSink interface {
	LogInteraction(ctx context.Context, number, question, answer string, refs []Reference, history []llm.Message, fromCache bool)
}

type Config struct {
	BasePath          string
	TopK              int
	CacheTTL          time.Duration
	MaxSentences      int
	MaxChars          int
	EmptyIndexMessage string
}

type Responder struct {
	cfg      Config
	embedder embedding.EmbeddingProvider
	model    llm.LLMProvider
	entities *catalog.Index
	cache    *redis.Client // optional
	sink     InteractionSink

	mu       sync.Mutex
	index    *vectorstore.Index
	chunks   []catalog.Chunk
	loadedAt time.Time
}

func NewResponder(cfg Config, embedder embedding.EmbeddingProvider, model llm.LLMProvider, entities *catalog.Index, cache *redis.Client, sink InteractionSink) *Responder {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	return &Responder{
		cfg:      cfg,
		embedder: embedder,
		model:    model,
		entities: entities,
		cache:    cache,
		sink:     sink,
	}
}

// Answer resolves one question. Empty questions are a no-op (nil, nil). An
// empty or absent index yields the configured unavailable template, not an
// error.
func (r *Responder) Answer(ctx context.Context, number, question string, history []llm.Message) (*Answer, error) {
	if normalize.Normalize(question) == "" {
		return nil, nil
	}

	if err := r.ensureIndex(); err != nil {
		return nil, fmt.Errorf("load catalog index: %w", err)
	}
	r.mu.Lock()
	index, chunks := r.index, r.chunks
	r.mu.Unlock()

	if index == nil || index.Len() == 0 {
		return &Answer{Text: r.cfg.EmptyIndexMessage}, nil
	}

	cacheKey := r.cacheKey(question, history)
	if cached := r.cacheGet(ctx, cacheKey); cached != nil {
		cached.FromCache = true
		r.logInteraction(ctx, number, question, cached, history)
		return cached, nil
	}

	refs, err := r.retrieve(ctx, question, index, chunks)
	if err != nil {
		return nil, err
	}

	text, err := r.generate(ctx, question, refs, history)
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		Text:       limitAnswer(text, r.cfg.MaxSentences, r.cfg.MaxChars),
		References: refs,
	}
	r.cacheSet(ctx, cacheKey, answer)
	r.logInteraction(ctx, number, question, answer, history)
	return answer, nil
}

func (r *Responder) retrieve(ctx context.Context, question string, index *vectorstore.Index, chunks []catalog.Chunk) ([]Reference, error) {
	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed question: got %d vectors", len(vectors))
	}

	results, err := index.Search(vectors[0], r.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	refs := make([]Reference, 0, len(results))
	for _, res := range results {
		if res.Ordinal < 0 || res.Ordinal >= len(chunks) {
			continue
		}
		c := chunks[res.Ordinal]
		refs = append(refs, Reference{
			Text:     c.Text,
			Page:     c.Page,
			Source:   c.Source,
			SKUs:     c.SKUs,
			Entities: c.Entities,
			ImageURL: c.ImageURL,
			Caption:  c.Caption,
			Distance: res.Distance,
		})
	}
	return PrioritizeByEntities(question, refs, r.entities), nil
}

func (r *Responder) generate(ctx context.Context, question string, refs []Reference, history []llm.Message) (string, error) {
	var names []string
	if r.entities != nil {
		names = r.entities.Names()
	}
	prompt := buildPrompt(question, refs, history, names)
	system := fmt.Sprintf(systemInstruction, r.cfg.MaxSentences)

	return r.model.Generate(ctx, prompt,
		llm.WithSystem(system),
		llm.WithTemperature(0.2),
		llm.WithMaxTokens(350),
	)
}

// ensureIndex reloads the artifact pair when its mtime moved. No polling:
// the check runs per question.
func (r *Responder) ensureIndex() error {
	mtime, err := vectorstore.ModTime(r.cfg.BasePath)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if mtime.IsZero() {
		r.index = nil
		r.chunks = nil
		r.loadedAt = time.Time{}
		return nil
	}
	if !mtime.After(r.loadedAt) && r.index != nil {
		return nil
	}

	var chunks []catalog.Chunk
	index, loadedAt, err := vectorstore.LoadFile(r.cfg.BasePath, &chunks)
	if err != nil {
		return err
	}
	r.index = index
	r.chunks = chunks
	r.loadedAt = loadedAt
	return nil
}

func (r *Responder) cacheKey(question string, history []llm.Message) string {
	historyBytes, _ := json.Marshal(history)
	sum := sha1.Sum([]byte(normalize.Normalize(question) + string(historyBytes)))
	return "ia:answer:" + hex.EncodeToString(sum[:])
}

func (r *Responder) cacheGet(ctx context.Context, key string) *Answer {
	if r.cache == nil {
		return nil
	}
	data, err := r.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var answer Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		return nil
	}
	return &answer
}

func (r *Responder) cacheSet(ctx context.Context, key string, answer *Answer) {
	if r.cache == nil || r.cfg.CacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(answer)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, data, r.cfg.CacheTTL).Err(); err != nil {
		log.Printf("[WARN] answer cache write failed: %v", err)
	}
}

func (r *Responder) logInteraction(ctx context.Context, number, question string, answer *Answer, history []llm.Message) {
	if r.sink == nil {
		return
	}
	r.sink.LogInteraction(ctx, number, question, answer.Text, answer.References, history, answer.FromCache)
}
