package bootstrap

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/internal/pkg/logger"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/contract"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/llm"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/rag"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/whatsapp"
)

// catalogStoreAdapter backs the ingest pipeline with the settings row. The
// fast-forward pins the AI cursor to the newest message so a fresh catalog
// never triggers answers to the backlog.
type catalogStoreAdapter struct {
	settings contract.AISettingsRepository
	messages contract.MessageRepository
}

func (a *catalogStoreAdapter) UpdateCatalog(ctx context.Context, basePath string, stats []byte) error {
	return a.settings.UpdateCatalog(ctx, basePath, stats)
}

func (a *catalogStoreAdapter) FastForwardCursor(ctx context.Context) error {
	latest, err := a.messages.LatestId(ctx)
	if err != nil {
		return err
	}
	return a.settings.SetCursor(ctx, latest)
}

// interactionSink persists responder interactions best-effort.
type interactionSink struct {
	logs contract.AILogRepository
	log  logger.ILogger
}

func (s *interactionSink) LogInteraction(ctx context.Context, number, question, answer string, refs []rag.Reference, history []llm.Message, fromCache bool) {
	refsJSON, _ := json.Marshal(refs)
	historyJSON, _ := json.Marshal(history)

	record := &entity.AILog{
		Number:     number,
		Question:   question,
		Answer:     answer,
		References: refsJSON,
		History:    historyJSON,
		FromCache:  fromCache,
	}
	if err := s.logs.Create(ctx, record); err != nil {
		s.log.Warn("interaction_sink", "interaction not logged", map[string]interface{}{
			"number": number, "error": err.Error(),
		})
	}
}

// outboundRecorder mirrors every accepted send into the message log.
type outboundRecorder struct {
	messages contract.MessageRepository
}

func (r *outboundRecorder) RecordOutbound(ctx context.Context, rec whatsapp.Record) error {
	kind := rec.Sender
	if kind == "" {
		kind = entity.KindBot
	}
	return r.messages.Create(ctx, &entity.Message{
		Number:    rec.Number,
		Kind:      kind,
		Body:      rec.Body,
		MediaURL:  rec.MediaURL,
		WaId:      rec.WaId,
		Step:      rec.Step,
		RuleId:    rec.RuleId,
		Timestamp: time.Now(),
	})
}
