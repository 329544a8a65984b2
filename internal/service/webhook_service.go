package service

import (
	"context"
	"strconv"
	"time"

	"github.com/SantiagoCTB/whatsapp-ia/internal/dto"
	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/internal/pkg/logger"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/contract"
)

type IWebhookService interface {
	// Process walks one webhook delivery. Duplicate and non-dispatchable
	// messages are absorbed here; the endpoint always acks.
	Process(ctx context.Context, payload *dto.WebhookPayload)
}

// WebhookService turns Meta webhook deliveries into flow turns. Typed text
// goes through the debounce buffer; interactive replies dispatch at once and
// global commands restart the flow, both skipping the buffer; media is
// logged but never dispatched.
type WebhookService struct {
	messages contract.MessageRepository
	states   contract.ChatStateRepository
	flow     IFlowService
	debounce IDebounceService
	commands *GlobalCommands
	log      logger.ILogger
}

func NewWebhookService(
	messages contract.MessageRepository,
	states contract.ChatStateRepository,
	flow IFlowService,
	debounce IDebounceService,
	commands *GlobalCommands,
	log logger.ILogger,
) *WebhookService {
	return &WebhookService{
		messages: messages,
		states:   states,
		flow:     flow,
		debounce: debounce,
		commands: commands,
		log:      log,
	}
}

func (s *WebhookService) Process(ctx context.Context, payload *dto.WebhookPayload) {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for i := range change.Value.Messages {
				s.processMessage(ctx, &change.Value.Messages[i])
			}
		}
	}
}

func (s *WebhookService) processMessage(ctx context.Context, msg *dto.InboundMessage) {
	if msg.From == "" || msg.Id == "" {
		return
	}

	fresh, err := s.messages.MarkProcessed(ctx, msg.Id)
	if err != nil {
		s.log.Error("webhook_service", "dedup check failed", map[string]interface{}{
			"wa_id": msg.Id, "error": err.Error(),
		})
		return
	}
	if !fresh {
		s.log.Debug("webhook_service", "duplicate delivery skipped", map[string]interface{}{
			"wa_id": msg.Id,
		})
		return
	}

	body, dispatchable := extractBody(msg)
	s.persistInbound(ctx, msg, body)

	if !dispatchable || body == "" {
		return
	}

	if s.commands.Matches(body) {
		// Restart commands bypass the buffer so "reset" acts immediately
		// even mid-burst.
		s.flow.Restart(ctx, msg.From)
		return
	}

	if msg.Type == "interactive" {
		// A tapped option is a complete turn already; buffering would only
		// delay it or glue stray typed fragments onto it.
		s.flow.HandleText(ctx, msg.From, body)
		return
	}

	s.debounce.Enqueue(msg.From, body)
}

// extractBody returns the dispatchable text of a message. Interactive
// replies dispatch their visible title so they match triggers like a typed
// answer would. Media only yields its caption for the log.
func extractBody(msg *dto.InboundMessage) (string, bool) {
	switch msg.Type {
	case "text":
		if msg.Text != nil {
			return msg.Text.Body, true
		}
	case "interactive":
		if msg.Interactive != nil {
			if r := msg.Interactive.ButtonReply; r != nil {
				return r.Title, true
			}
			if r := msg.Interactive.ListReply; r != nil {
				return r.Title, true
			}
		}
	case "image", "audio", "video", "document":
		for _, media := range []*dto.MediaBody{msg.Image, msg.Audio, msg.Video, msg.Document} {
			if media != nil {
				return media.Caption, false
			}
		}
	}
	return "", false
}

func (s *WebhookService) persistInbound(ctx context.Context, msg *dto.InboundMessage, body string) {
	step := ""
	if state, err := s.states.Find(ctx, msg.From); err == nil && state != nil {
		step = state.Step
	}

	record := &entity.Message{
		Number:    msg.From,
		Kind:      entity.KindClient,
		Body:      body,
		WaId:      msg.Id,
		Step:      step,
		Timestamp: inboundTimestamp(msg.Timestamp),
	}
	if err := s.messages.Create(ctx, record); err != nil {
		s.log.Warn("webhook_service", "inbound message not persisted", map[string]interface{}{
			"wa_id": msg.Id, "error": err.Error(),
		})
	}
}

func inboundTimestamp(raw string) time.Time {
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil && unix > 0 {
		return time.Unix(unix, 0)
	}
	return time.Now()
}
