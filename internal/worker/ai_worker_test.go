package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SantiagoCTB/whatsapp-ia/internal/config"
	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/specification"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/catalog"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/llm"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/rag"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/whatsapp"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

type fakeSettings struct {
	cursor    int64
	enabled   bool
	denyClaim bool
}

func (f *fakeSettings) Get(context.Context) (*entity.AISettings, error) {
	return &entity.AISettings{Id: 1, Enabled: f.enabled, LastProcessedMessageId: f.cursor}, nil
}

func (f *fakeSettings) Claim(_ context.Context, expected, next int64) (bool, error) {
	if f.denyClaim || f.cursor != expected {
		return false, nil
	}
	f.cursor = next
	return true, nil
}

func (f *fakeSettings) SetCursor(_ context.Context, value int64) error {
	f.cursor = value
	return nil
}

func (f *fakeSettings) UpdateCatalog(context.Context, string, []byte) error { return nil }

type fakeMessages struct {
	pending []*entity.Message
	history []*entity.Message
}

func (f *fakeMessages) Create(context.Context, *entity.Message) error { return nil }

func (f *fakeMessages) FindAll(context.Context, ...specification.Specification) ([]*entity.Message, error) {
	return nil, nil
}

func (f *fakeMessages) UnconsumedForAI(_ context.Context, afterId int64, _ string, limit int) ([]*entity.Message, error) {
	var out []*entity.Message
	for _, m := range f.pending {
		if m.Id > afterId {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeMessages) RecentHistory(context.Context, string, int64, int) ([]*entity.Message, error) {
	return f.history, nil
}

func (f *fakeMessages) LatestId(context.Context) (int64, error) { return 0, nil }

func (f *fakeMessages) MarkProcessed(context.Context, string) (bool, error) { return true, nil }

type fakeStates struct {
	states   map[string]*entity.ChatState
	statuses map[string]string
}

func newFakeStates() *fakeStates {
	return &fakeStates{states: make(map[string]*entity.ChatState), statuses: make(map[string]string)}
}

func (f *fakeStates) Find(_ context.Context, number string) (*entity.ChatState, error) {
	return f.states[number], nil
}

func (f *fakeStates) Upsert(context.Context, *entity.ChatState) error { return nil }

func (f *fakeStates) SetStatus(_ context.Context, number, status string) error {
	f.statuses[number] = status
	return nil
}

func (f *fakeStates) Delete(context.Context, string) error { return nil }

type fakeRules struct {
	keywords []*entity.CatalogKeyword
}

func (f *fakeRules) FindByStep(context.Context, string) ([]*entity.Rule, error) { return nil, nil }

func (f *fakeRules) FindOne(context.Context, ...specification.Specification) (*entity.Rule, error) {
	return nil, nil
}

func (f *fakeRules) FindAll(context.Context, ...specification.Specification) ([]*entity.Rule, error) {
	return nil, nil
}

func (f *fakeRules) CatalogKeywords(context.Context) ([]*entity.CatalogKeyword, error) {
	return f.keywords, nil
}

type fakeResponder struct {
	answer  *rag.Answer
	err     error
	history []llm.Message
	asked   []string
}

func (f *fakeResponder) Answer(_ context.Context, _ string, question string, history []llm.Message) (*rag.Answer, error) {
	f.asked = append(f.asked, question)
	f.history = history
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type fakeSender struct {
	bodies      []string
	kinds       []string
	urls        []string
	ok          bool
	rejectEmpty bool
}

func (f *fakeSender) Send(_ context.Context, _ string, body string, opts whatsapp.SendOptions) bool {
	f.bodies = append(f.bodies, body)
	f.kinds = append(f.kinds, opts.Kind)
	f.urls = append(f.urls, opts.MediaURL)
	if f.rejectEmpty && body == "" {
		return false
	}
	return f.ok
}

func workerConfig() config.AIConfig {
	return config.AIConfig{
		HandoffStep:       "ia_chat",
		BatchSize:         10,
		HistoryLimit:      6,
		MaxImages:         3,
		ErrorMessage:      "error interno",
		FallbackMessage:   "sin respuesta",
		EmptyIndexMessage: "sin catálogo",
	}
}

func handoffState(number string) *entity.ChatState {
	return &entity.ChatState{Number: number, Step: "ia_chat", Status: entity.StatusActive}
}

func workerFixture(settings *fakeSettings, messages *fakeMessages, states *fakeStates, responder *fakeResponder, sender *fakeSender) *AIWorker {
	return NewAIWorker(workerConfig(), settings, messages, states, &fakeRules{},
		responder, sender, catalog.DefaultIndex(), nil, nopLogger{})
}

func TestCycleConsumesBatchInOrder(t *testing.T) {
	settings := &fakeSettings{enabled: true}
	messages := &fakeMessages{pending: []*entity.Message{
		{Id: 5, Number: "n1", Kind: entity.KindClient, Body: "¿precio de la cabaña?"},
		{Id: 9, Number: "n1", Kind: entity.KindClient, Body: "¿tiene jacuzzi?"},
	}}
	states := newFakeStates()
	states.states["n1"] = handoffState("n1")
	responder := &fakeResponder{answer: &rag.Answer{Text: "respuesta"}}
	sender := &fakeSender{ok: true}

	w := workerFixture(settings, messages, states, responder, sender)
	w.cycle(context.Background())

	assert.Equal(t, int64(9), settings.cursor)
	assert.Equal(t, []string{"¿precio de la cabaña?", "¿tiene jacuzzi?"}, responder.asked)
	assert.Equal(t, []string{"respuesta", "respuesta"}, sender.bodies)
	assert.Equal(t, entity.StatusActive, states.statuses["n1"])
}

func TestLostClaimStopsCycle(t *testing.T) {
	settings := &fakeSettings{enabled: true, denyClaim: true}
	messages := &fakeMessages{pending: []*entity.Message{
		{Id: 5, Number: "n1", Kind: entity.KindClient, Body: "hola"},
	}}
	states := newFakeStates()
	states.states["n1"] = handoffState("n1")
	responder := &fakeResponder{answer: &rag.Answer{Text: "respuesta"}}
	sender := &fakeSender{ok: true}

	w := workerFixture(settings, messages, states, responder, sender)
	w.cycle(context.Background())

	assert.Empty(t, sender.bodies)
	assert.Empty(t, responder.asked)
	assert.Equal(t, int64(0), settings.cursor)
}

func TestSendFailureRollsBackCursor(t *testing.T) {
	settings := &fakeSettings{enabled: true}
	messages := &fakeMessages{pending: []*entity.Message{
		{Id: 5, Number: "n1", Kind: entity.KindClient, Body: "hola"},
		{Id: 9, Number: "n1", Kind: entity.KindClient, Body: "sigo aquí"},
	}}
	states := newFakeStates()
	states.states["n1"] = handoffState("n1")
	responder := &fakeResponder{answer: &rag.Answer{Text: "respuesta"}}
	sender := &fakeSender{ok: false}

	w := workerFixture(settings, messages, states, responder, sender)
	w.cycle(context.Background())

	// First message is retried next poll; the second was never claimed.
	assert.Equal(t, int64(0), settings.cursor)
	assert.Equal(t, []string{"respuesta"}, sender.bodies)
}

func TestResponderErrorSendsErrorMessage(t *testing.T) {
	settings := &fakeSettings{enabled: true}
	messages := &fakeMessages{pending: []*entity.Message{
		{Id: 42, Number: "n1", Kind: entity.KindClient, Body: "hola"},
	}}
	states := newFakeStates()
	states.states["n1"] = handoffState("n1")
	responder := &fakeResponder{err: errors.New("llm unavailable")}
	sender := &fakeSender{ok: true}

	w := workerFixture(settings, messages, states, responder, sender)
	w.cycle(context.Background())

	require.Len(t, sender.bodies, 1)
	assert.Equal(t, "error interno", sender.bodies[0])
	assert.Equal(t, entity.StatusError, states.statuses["n1"])
	// The error reply consumed the message; no retry.
	assert.Equal(t, int64(42), settings.cursor)
}

func TestResponderErrorWithDeadTransportRollsBack(t *testing.T) {
	settings := &fakeSettings{enabled: true}
	messages := &fakeMessages{pending: []*entity.Message{
		{Id: 42, Number: "n1", Kind: entity.KindClient, Body: "hola"},
	}}
	states := newFakeStates()
	states.states["n1"] = handoffState("n1")
	responder := &fakeResponder{err: errors.New("llm unavailable")}
	sender := &fakeSender{ok: false}

	w := workerFixture(settings, messages, states, responder, sender)
	w.cycle(context.Background())

	assert.Equal(t, int64(0), settings.cursor)
	assert.Empty(t, states.statuses["n1"])
}

func TestEmptyIndexAnswerMarksFallback(t *testing.T) {
	settings := &fakeSettings{enabled: true}
	messages := &fakeMessages{pending: []*entity.Message{
		{Id: 42, Number: "n1", Kind: entity.KindClient, Body: "hola"},
	}}
	states := newFakeStates()
	states.states["n1"] = handoffState("n1")
	responder := &fakeResponder{answer: &rag.Answer{Text: "sin catálogo"}}
	sender := &fakeSender{ok: true}

	w := workerFixture(settings, messages, states, responder, sender)
	w.cycle(context.Background())

	assert.Equal(t, entity.StatusFallback, states.statuses["n1"])
	assert.Equal(t, int64(42), settings.cursor)
}

func TestEmptyGenerationSendsFallback(t *testing.T) {
	settings := &fakeSettings{enabled: true}
	messages := &fakeMessages{pending: []*entity.Message{
		{Id: 42, Number: "n1", Kind: entity.KindClient, Body: "hola"},
	}}
	states := newFakeStates()
	states.states["n1"] = handoffState("n1")
	responder := &fakeResponder{answer: &rag.Answer{Text: ""}}
	sender := &fakeSender{ok: true}

	w := workerFixture(settings, messages, states, responder, sender)
	w.cycle(context.Background())

	require.Len(t, sender.bodies, 1)
	assert.Equal(t, "sin respuesta", sender.bodies[0])
	assert.Equal(t, entity.StatusFallback, states.statuses["n1"])
	assert.Equal(t, int64(42), settings.cursor)
}

func TestEmptyGenerationDoesNotRetry(t *testing.T) {
	settings := &fakeSettings{enabled: true}
	messages := &fakeMessages{pending: []*entity.Message{
		{Id: 42, Number: "n1", Kind: entity.KindClient, Body: "hola"},
	}}
	states := newFakeStates()
	states.states["n1"] = handoffState("n1")
	responder := &fakeResponder{answer: &rag.Answer{Text: "  "}}
	// Transport refuses bodiless sends; the fallback text must go out instead.
	sender := &fakeSender{ok: true, rejectEmpty: true}

	w := workerFixture(settings, messages, states, responder, sender)
	for i := 0; i < 3; i++ {
		w.cycle(context.Background())
	}

	assert.Equal(t, int64(42), settings.cursor)
	assert.Equal(t, []string{"hola"}, responder.asked)
	require.Len(t, sender.bodies, 1)
	assert.Equal(t, "sin respuesta", sender.bodies[0])
}

func TestStaleChatIsSkippedButConsumed(t *testing.T) {
	settings := &fakeSettings{enabled: true}
	messages := &fakeMessages{pending: []*entity.Message{
		{Id: 5, Number: "n1", Kind: entity.KindClient, Body: "hola"},
	}}
	states := newFakeStates()
	states.states["n1"] = &entity.ChatState{Number: "n1", Step: "menu_principal"}
	responder := &fakeResponder{answer: &rag.Answer{Text: "respuesta"}}
	sender := &fakeSender{ok: true}

	w := workerFixture(settings, messages, states, responder, sender)
	w.cycle(context.Background())

	assert.Empty(t, sender.bodies)
	assert.Equal(t, int64(5), settings.cursor)
}

func TestDisabledWorkerDoesNothing(t *testing.T) {
	settings := &fakeSettings{enabled: false}
	messages := &fakeMessages{pending: []*entity.Message{
		{Id: 5, Number: "n1", Kind: entity.KindClient, Body: "hola"},
	}}
	responder := &fakeResponder{answer: &rag.Answer{Text: "respuesta"}}
	sender := &fakeSender{ok: true}

	w := workerFixture(settings, messages, newFakeStates(), responder, sender)
	w.cycle(context.Background())

	assert.Empty(t, sender.bodies)
	assert.Equal(t, int64(0), settings.cursor)
}

func TestUnconfiguredHandoffStepDisablesWorker(t *testing.T) {
	cfg := workerConfig()
	cfg.HandoffStep = ""
	settings := &fakeSettings{enabled: true}
	messages := &fakeMessages{pending: []*entity.Message{
		{Id: 5, Number: "n1", Kind: entity.KindClient, Body: "hola"},
	}}
	responder := &fakeResponder{answer: &rag.Answer{Text: "respuesta"}}
	sender := &fakeSender{ok: true}

	w := NewAIWorker(cfg, settings, messages, newFakeStates(), &fakeRules{},
		responder, sender, catalog.DefaultIndex(), nil, nopLogger{})
	w.cycle(context.Background())

	assert.Empty(t, sender.bodies)
	assert.Equal(t, int64(0), settings.cursor)
}

func TestHistoryMapsLogKindsToRoles(t *testing.T) {
	settings := &fakeSettings{enabled: true}
	messages := &fakeMessages{
		pending: []*entity.Message{
			{Id: 10, Number: "n1", Kind: entity.KindClient, Body: "¿y el desayuno?"},
		},
		history: []*entity.Message{
			{Id: 7, Number: "n1", Kind: entity.KindClient, Body: "hola"},
			{Id: 8, Number: "n1", Kind: entity.KindBot, Body: "buenas tardes"},
		},
	}
	states := newFakeStates()
	states.states["n1"] = handoffState("n1")
	responder := &fakeResponder{answer: &rag.Answer{Text: "respuesta"}}
	sender := &fakeSender{ok: true}

	w := workerFixture(settings, messages, states, responder, sender)
	w.cycle(context.Background())

	require.Len(t, responder.history, 2)
	assert.Equal(t, "user", responder.history[0].Role)
	assert.Equal(t, "assistant", responder.history[1].Role)
}

func TestReferenceImagesRankAndDedupe(t *testing.T) {
	w := NewAIWorker(workerConfig(), &fakeSettings{}, &fakeMessages{}, newFakeStates(),
		&fakeRules{keywords: []*entity.CatalogKeyword{
			{Keyword: "jacuzzi", MediaURL: "http://img/jacuzzi.jpg"},
		}},
		&fakeResponder{}, &fakeSender{ok: true}, catalog.DefaultIndex(), nil, nopLogger{})

	answer := &rag.Answer{References: []rag.Reference{
		{Text: "Cabaña Cóndor con vista", ImageURL: "http://img/condor.jpg", Source: "catalogo.pdf", Page: 2},
		{Text: "Cabaña Cóndor interior", ImageURL: "http://img/condor.jpg", Source: "catalogo.pdf", Page: 2},
		{Text: "Desayuno incluido", ImageURL: "http://img/desayuno.jpg"},
	}}

	picked := w.referenceImages(context.Background(), "fotos de la cabaña cóndor con jacuzzi", answer)

	require.NotEmpty(t, picked)
	urls := make([]string, 0, len(picked))
	for _, p := range picked {
		urls = append(urls, p.url)
	}
	assert.Equal(t, "http://img/condor.jpg", urls[0])
	assert.Contains(t, urls, "http://img/jacuzzi.jpg")
	assert.LessOrEqual(t, len(picked), 3)
	// Duplicate condor URL collapsed.
	count := 0
	for _, u := range urls {
		if u == "http://img/condor.jpg" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestReferenceImagesScoreAgainstAnswerText(t *testing.T) {
	w := NewAIWorker(workerConfig(), &fakeSettings{}, &fakeMessages{}, newFakeStates(),
		&fakeRules{}, &fakeResponder{}, &fakeSender{ok: true}, catalog.DefaultIndex(), nil, nopLogger{})

	// The SKU and the product name only appear in the generated answer,
	// never in the question.
	answer := &rag.Answer{
		Text: "El modelo CND-801 de la Cabaña Cóndor incluye jacuzzi.",
		References: []rag.Reference{
			{Text: "Horarios para mascotas", ImageURL: "http://img/unrelated.jpg"},
			{Text: "Ficha técnica del modelo", ImageURL: "http://img/sku.jpg", SKUs: []string{"CND-801"}},
		},
	}

	picked := w.referenceImages(context.Background(), "¿cuál me recomiendas?", answer)

	require.NotEmpty(t, picked)
	assert.Equal(t, "http://img/sku.jpg", picked[0].url)
	for _, p := range picked {
		assert.NotEqual(t, "http://img/unrelated.jpg", p.url)
	}
}

func TestReferenceImagesDefaultFallback(t *testing.T) {
	cfg := workerConfig()
	cfg.DefaultImageURL = "http://img/default.jpg"
	w := NewAIWorker(cfg, &fakeSettings{}, &fakeMessages{}, newFakeStates(), &fakeRules{},
		&fakeResponder{}, &fakeSender{ok: true}, catalog.DefaultIndex(), nil, nopLogger{})

	picked := w.referenceImages(context.Background(), "algo sin relación", &rag.Answer{})

	require.Len(t, picked, 1)
	assert.Equal(t, "http://img/default.jpg", picked[0].url)
}
