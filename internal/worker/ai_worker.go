package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/SantiagoCTB/whatsapp-ia/internal/config"
	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/internal/pkg/logger"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/contract"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/catalog"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/events"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/llm"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/normalize"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/rag"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/whatsapp"
)

// Answerer resolves one catalog question.
type Answerer interface {
	Answer(ctx context.Context, number, question string, history []llm.Message) (*rag.Answer, error)
}

// Sender is the outbound transport; false covers every failure mode.
type Sender interface {
	Send(ctx context.Context, number, body string, opts whatsapp.SendOptions) bool
}

// EventPublisher emits domain events. Optional; nil disables publishing.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// AIWorker polls for client messages in the handoff step and answers them
// through the catalog responder. The shared cursor is claimed per message
// with a compare-and-swap so concurrent replicas consume each message
// exactly once; a lost claim is a normal race, not an error.
type AIWorker struct {
	cfg       config.AIConfig
	settings  contract.AISettingsRepository
	messages  contract.MessageRepository
	states    contract.ChatStateRepository
	rules     contract.RuleRepository
	responder Answerer
	sender    Sender
	entities  *catalog.Index
	pub       EventPublisher
	log       logger.ILogger
}

func NewAIWorker(
	cfg config.AIConfig,
	settings contract.AISettingsRepository,
	messages contract.MessageRepository,
	states contract.ChatStateRepository,
	rules contract.RuleRepository,
	responder Answerer,
	sender Sender,
	entities *catalog.Index,
	pub EventPublisher,
	log logger.ILogger,
) *AIWorker {
	return &AIWorker{
		cfg:       cfg,
		settings:  settings,
		messages:  messages,
		states:    states,
		rules:     rules,
		responder: responder,
		sender:    sender,
		entities:  entities,
		pub:       pub,
		log:       log,
	}
}

// Run polls until the context is cancelled.
func (w *AIWorker) Run(ctx context.Context) {
	interval := w.cfg.PollInterval
	if interval < 1 {
		interval = 1
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	w.log.Info("ai_worker", "worker started", map[string]interface{}{
		"poll_interval": interval, "handoff_step": w.cfg.HandoffStep,
	})

	for {
		select {
		case <-ctx.Done():
			w.log.Info("ai_worker", "worker stopped", nil)
			return
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

func (w *AIWorker) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("ai_worker", "cycle panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
		}
	}()

	if w.cfg.HandoffStep == "" {
		return
	}

	settings, err := w.settings.Get(ctx)
	if err != nil {
		w.log.Error("ai_worker", "settings lookup failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if !settings.Enabled {
		return
	}
	cursor := settings.LastProcessedMessageId

	batch, err := w.messages.UnconsumedForAI(ctx, cursor, w.cfg.HandoffStep, w.cfg.BatchSize)
	if err != nil {
		w.log.Error("ai_worker", "batch query failed", map[string]interface{}{"error": err.Error()})
		return
	}

	for _, msg := range batch {
		claimed, err := w.settings.Claim(ctx, cursor, msg.Id)
		if err != nil {
			w.log.Error("ai_worker", "claim failed", map[string]interface{}{
				"message_id": msg.Id, "error": err.Error(),
			})
			return
		}
		if !claimed {
			// Another replica moved the cursor; it owns the batch now.
			return
		}
		prev := cursor
		cursor = msg.Id

		if !w.process(ctx, prev, msg) {
			return
		}
	}
}

// process answers one claimed message. A false return means the cursor was
// rolled back and the cycle must stop so the message is retried.
func (w *AIWorker) process(ctx context.Context, prevCursor int64, msg *entity.Message) bool {
	state, err := w.states.Find(ctx, msg.Number)
	if err != nil {
		w.log.Error("ai_worker", "state lookup failed", map[string]interface{}{
			"number": msg.Number, "error": err.Error(),
		})
		return true
	}
	// The chat may have left the handoff step between the query and the
	// claim; the message stays consumed either way.
	if state == nil || state.Step != w.cfg.HandoffStep || state.Status == entity.StatusBlocked {
		w.log.Debug("ai_worker", "stale message skipped", map[string]interface{}{
			"message_id": msg.Id, "number": msg.Number,
		})
		return true
	}

	history := w.history(ctx, msg)

	answer, err := w.responder.Answer(ctx, msg.Number, msg.Body, history)
	if err != nil {
		w.log.Error("ai_worker", "answer failed", map[string]interface{}{
			"message_id": msg.Id, "number": msg.Number, "error": err.Error(),
		})
		if !w.sender.Send(ctx, msg.Number, w.cfg.ErrorMessage, textOpts(w.cfg.HandoffStep)) {
			w.rollback(ctx, prevCursor, msg.Id)
			return false
		}
		if err := w.states.SetStatus(ctx, msg.Number, entity.StatusError); err != nil {
			w.log.Warn("ai_worker", "status not updated", map[string]interface{}{
				"number": msg.Number, "error": err.Error(),
			})
		}
		return true
	}
	// An empty generation still gets a reply; sending the empty body would
	// fail the transport and wedge the cursor on this message.
	if answer == nil || strings.TrimSpace(answer.Text) == "" {
		if !w.sender.Send(ctx, msg.Number, w.cfg.FallbackMessage, textOpts(w.cfg.HandoffStep)) {
			w.rollback(ctx, prevCursor, msg.Id)
			return false
		}
		if err := w.states.SetStatus(ctx, msg.Number, entity.StatusFallback); err != nil {
			w.log.Warn("ai_worker", "status not updated", map[string]interface{}{
				"number": msg.Number, "error": err.Error(),
			})
		}
		return true
	}

	if !w.sender.Send(ctx, msg.Number, answer.Text, textOpts(w.cfg.HandoffStep)) {
		w.rollback(ctx, prevCursor, msg.Id)
		return false
	}

	status := entity.StatusActive
	if answer.Text == w.cfg.EmptyIndexMessage || answer.Text == w.cfg.FallbackMessage {
		status = entity.StatusFallback
	}
	if err := w.states.SetStatus(ctx, msg.Number, status); err != nil {
		w.log.Warn("ai_worker", "status not updated", map[string]interface{}{
			"number": msg.Number, "error": err.Error(),
		})
	}

	for _, img := range w.referenceImages(ctx, msg.Body, answer) {
		opts := textOpts(w.cfg.HandoffStep)
		opts.Kind = whatsapp.KindImage
		opts.MediaURL = img.url
		if !w.sender.Send(ctx, msg.Number, img.caption, opts) {
			w.log.Warn("ai_worker", "reference image not sent", map[string]interface{}{
				"number": msg.Number, "url": img.url,
			})
		}
	}

	if w.pub != nil {
		if err := w.pub.Publish(ctx, events.AIAnswerSent(msg.Number, msg.Id, answer.FromCache)); err != nil {
			w.log.Warn("ai_worker", "event not published", map[string]interface{}{
				"number": msg.Number, "error": err.Error(),
			})
		}
	}
	return true
}

func (w *AIWorker) rollback(ctx context.Context, prevCursor, msgId int64) {
	w.log.Warn("ai_worker", "send failed, rolling cursor back", map[string]interface{}{
		"message_id": msgId, "cursor": prevCursor,
	})
	if err := w.settings.SetCursor(ctx, prevCursor); err != nil {
		w.log.Error("ai_worker", "cursor rollback failed", map[string]interface{}{
			"cursor": prevCursor, "error": err.Error(),
		})
	}
}

// history maps the recent log into provider roles: cliente asks, bot answers.
func (w *AIWorker) history(ctx context.Context, msg *entity.Message) []llm.Message {
	if w.cfg.HistoryLimit <= 0 {
		return nil
	}
	rows, err := w.messages.RecentHistory(ctx, msg.Number, msg.Id, w.cfg.HistoryLimit)
	if err != nil {
		w.log.Warn("ai_worker", "history lookup failed", map[string]interface{}{
			"number": msg.Number, "error": err.Error(),
		})
		return nil
	}
	history := make([]llm.Message, 0, len(rows))
	for _, row := range rows {
		if row.Body == "" {
			continue
		}
		role := "user"
		if row.Kind == entity.KindBot {
			role = "assistant"
		}
		history = append(history, llm.Message{Role: role, Content: row.Body})
	}
	return history
}

type referenceImage struct {
	url     string
	caption string
	score   int
}

// referenceImages picks up to MaxImages attachments for an answer. Retrieval
// hits that carry a page image compete with keyword-derived catalog images;
// entity mentions across question and answer weigh heaviest, then SKU hits
// in the answer text, then token overlap with the chunk text.
func (w *AIWorker) referenceImages(ctx context.Context, question string, answer *rag.Answer) []referenceImage {
	if w.cfg.MaxImages <= 0 {
		return nil
	}

	qTokens := normalize.TokenSet(question)
	aNorm := normalize.Normalize(answer.Text)
	aTokens := normalize.TokenSet(answer.Text)
	var mentioned []catalog.Entity
	if w.entities != nil {
		mentioned = w.entities.FindInText(question + " " + answer.Text)
	}

	var candidates []referenceImage
	for _, ref := range answer.References {
		if ref.ImageURL == "" {
			continue
		}
		score := 3 * catalog.ScoreFields(mentioned,
			ref.Text, ref.Source, ref.Caption, strings.Join(ref.SKUs, " "))
		for _, sku := range ref.SKUs {
			if n := normalize.Normalize(sku); n != "" && strings.Contains(aNorm, n) {
				score += 2
			}
		}
		score += normalize.Overlap(aTokens, normalize.TokenSet(ref.Text))
		candidates = append(candidates, referenceImage{
			url:     ref.ImageURL,
			caption: refCaption(ref),
			score:   score,
		})
	}

	if keywords, err := w.rules.CatalogKeywords(ctx); err == nil {
		for _, kw := range keywords {
			if _, ok := qTokens[normalize.Normalize(kw.Keyword)]; ok {
				candidates = append(candidates, referenceImage{url: kw.MediaURL, score: 2})
			}
		}
	} else {
		w.log.Warn("ai_worker", "catalog keywords unavailable", map[string]interface{}{"error": err.Error()})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})

	seen := make(map[string]struct{})
	picked := make([]referenceImage, 0, w.cfg.MaxImages)
	for _, c := range candidates {
		if c.score <= 0 {
			continue
		}
		if _, dup := seen[c.url]; dup {
			continue
		}
		seen[c.url] = struct{}{}
		picked = append(picked, c)
		if len(picked) == w.cfg.MaxImages {
			return picked
		}
	}
	if len(picked) > 0 {
		return picked
	}

	// Nothing scored: fall back to the first hit with an image, then to the
	// configured default.
	for _, c := range candidates {
		return []referenceImage{c}
	}
	if w.cfg.DefaultImageURL != "" {
		return []referenceImage{{url: w.cfg.DefaultImageURL}}
	}
	return nil
}

func refCaption(ref rag.Reference) string {
	if ref.Caption != "" {
		return ref.Caption
	}
	if ref.Source != "" && ref.Page > 0 {
		return fmt.Sprintf("%s – pág. %d", ref.Source, ref.Page)
	}
	return ref.Source
}

func textOpts(step string) whatsapp.SendOptions {
	return whatsapp.SendOptions{Kind: whatsapp.KindText, Step: step}
}
