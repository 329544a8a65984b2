package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SantiagoCTB/whatsapp-ia/internal/config"
	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/internal/pkg/logger"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/contract"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/events"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/normalize"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/whatsapp"
)

const (
	bootstrapTrigger  = "iniciar"
	invalidMeasureMsg = "Por favor ingresa la medida correcta."
)

// Sender is the outbound transport contract. Send returns false on failure
// so the dispatch path can degrade without unwinding.
type Sender interface {
	Send(ctx context.Context, number, body string, opts whatsapp.SendOptions) bool
}

// EventPublisher emits domain events. Optional; nil disables publishing.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IFlowService interface {
	// HandleText runs one conversational turn for a debounced text input.
	HandleText(ctx context.Context, number, text string)

	// Restart drops the session and replays the bootstrap turn.
	Restart(ctx context.Context, number string)
}

// FlowService is the rule-driven state machine. Each turn resolves against
// the rules of the chat's current step: exact trigger matches win by rule id
// ascending, then a single wildcard, then the fixed fallback reply.
type FlowService struct {
	cfg      config.FlowConfig
	rules    contract.RuleRepository
	states   contract.ChatStateRepository
	roles    contract.ChatRoleRepository
	handlers *HandlerRegistry
	sender   Sender
	pub      EventPublisher
	log      logger.ILogger
	now      func() time.Time
}

func NewFlowService(
	cfg config.FlowConfig,
	rules contract.RuleRepository,
	states contract.ChatStateRepository,
	roles contract.ChatRoleRepository,
	handlers *HandlerRegistry,
	sender Sender,
	pub EventPublisher,
	log logger.ILogger,
) *FlowService {
	return &FlowService{
		cfg:      cfg,
		rules:    rules,
		states:   states,
		roles:    roles,
		handlers: handlers,
		sender:   sender,
		pub:      pub,
		log:      log,
		now:      time.Now,
	}
}

func (s *FlowService) HandleText(ctx context.Context, number, text string) {
	input := normalize.Normalize(text)

	state, err := s.states.Find(ctx, number)
	if err != nil {
		s.log.Error("flow_service", "state lookup failed", map[string]interface{}{
			"number": number, "error": err.Error(),
		})
		return
	}

	timeout := time.Duration(s.cfg.SessionTimeout) * time.Second
	if state != nil && state.Expired(timeout, s.now()) {
		if err := s.states.Delete(ctx, number); err != nil {
			s.log.Warn("flow_service", "expired state not deleted", map[string]interface{}{
				"number": number, "error": err.Error(),
			})
		}
		state = nil
	}

	step := s.cfg.InitialStep
	if state == nil {
		// Fresh session: the user's first message only wakes the flow, the
		// bootstrap trigger drives the turn.
		input = bootstrapTrigger
	} else {
		step = state.Step
	}

	s.dispatch(ctx, number, step, input)
}

func (s *FlowService) Restart(ctx context.Context, number string) {
	if err := s.states.Delete(ctx, number); err != nil {
		s.log.Warn("flow_service", "state not deleted on restart", map[string]interface{}{
			"number": number, "error": err.Error(),
		})
	}
	s.dispatch(ctx, number, s.cfg.InitialStep, bootstrapTrigger)
}

// dispatch resolves one turn at the given step. The wildcard fires at most
// once and its response never re-enters dispatch.
func (s *FlowService) dispatch(ctx context.Context, number, step, input string) {
	rules, err := s.rules.FindByStep(ctx, step)
	if err != nil {
		s.log.Error("flow_service", "rule lookup failed", map[string]interface{}{
			"number": number, "step": step, "error": err.Error(),
		})
		s.persist(ctx, number, step, entity.StatusError)
		return
	}

	if input != "" {
		for _, rule := range rules {
			if matchesExact(rule, input) {
				s.fire(ctx, number, step, rule, input)
				return
			}
		}
	}

	for _, rule := range rules {
		if rule.IsWildcard() {
			s.fire(ctx, number, step, rule, input)
			return
		}
	}

	if input == "" {
		// Nothing to match and nothing catches silence.
		return
	}

	s.sender.Send(ctx, number, s.cfg.FallbackText, whatsapp.SendOptions{
		Kind: whatsapp.KindText,
		Step: step,
	})
	s.persist(ctx, number, step, entity.StatusNoRule)
}

func matchesExact(rule *entity.Rule, input string) bool {
	for _, trigger := range rule.Triggers() {
		if trigger == "*" {
			continue
		}
		if normalize.Normalize(trigger) == input {
			return true
		}
	}
	return false
}

// fire sends the rule's response and advances the step chain. Intermediate
// hops only fire their own wildcard; the last hop is the one persisted.
func (s *FlowService) fire(ctx context.Context, number, step string, rule *entity.Rule, input string) {
	body := rule.Response

	if rule.Handler != "" {
		handler, err := s.handlers.Resolve(rule.Handler)
		if err != nil {
			s.log.Error("flow_service", "handler missing at dispatch", map[string]interface{}{
				"rule_id": rule.Id, "handler": rule.Handler,
			})
			s.persist(ctx, number, step, entity.StatusError)
			return
		}
		computed, err := handler.Compute(input, rule)
		if err != nil {
			if errors.Is(err, ErrInvalidMeasure) {
				// Bad measure keeps the chat on the same step for a retry.
				s.sender.Send(ctx, number, invalidMeasureMsg, whatsapp.SendOptions{
					Kind: whatsapp.KindText,
					Step: step,
				})
				s.persist(ctx, number, step, "")
				return
			}
			s.log.Error("flow_service", "handler failed", map[string]interface{}{
				"rule_id": rule.Id, "handler": rule.Handler, "error": err.Error(),
			})
			s.persist(ctx, number, step, entity.StatusError)
			return
		}
		body = computed
	}

	s.respond(ctx, number, step, rule, body)

	if rule.RoleId != nil {
		if err := s.roles.Assign(ctx, number, *rule.RoleId); err != nil {
			s.log.Warn("flow_service", "role not assigned", map[string]interface{}{
				"number": number, "role_id": *rule.RoleId, "error": err.Error(),
			})
		}
	}

	steps := rule.NextSteps()
	finalStep := step
	if len(steps) > 0 {
		for _, hop := range steps[:len(steps)-1] {
			s.fireIntermediate(ctx, number, hop)
		}
		finalStep = steps[len(steps)-1]
	}
	s.persist(ctx, number, finalStep, "")

	if s.pub != nil {
		if err := s.pub.Publish(ctx, events.TurnDispatched(number, step, finalStep, rule.Id)); err != nil {
			s.log.Warn("flow_service", "event not published", map[string]interface{}{
				"number": number, "error": err.Error(),
			})
		}
	}
}

// fireIntermediate plays the wildcard of a pass-through hop without touching
// persisted state and without following its own transitions.
func (s *FlowService) fireIntermediate(ctx context.Context, number, step string) {
	rules, err := s.rules.FindByStep(ctx, step)
	if err != nil {
		s.log.Warn("flow_service", "intermediate step lookup failed", map[string]interface{}{
			"number": number, "step": step, "error": err.Error(),
		})
		return
	}
	for _, rule := range rules {
		if rule.IsWildcard() {
			s.respond(ctx, number, step, rule, rule.Response)
			return
		}
	}
}

// respond sends the rule body according to its kind. Media rules may carry a
// "||" list; the first link takes the caption, the rest go bare.
func (s *FlowService) respond(ctx context.Context, number, step string, rule *entity.Rule, body string) {
	ruleId := rule.Id
	opts := whatsapp.SendOptions{
		Kind:   rule.Kind,
		Step:   step,
		RuleId: &ruleId,
	}
	if opts.Kind == "" {
		opts.Kind = whatsapp.KindText
	}

	switch opts.Kind {
	case whatsapp.KindImage, whatsapp.KindVideo, whatsapp.KindAudio, whatsapp.KindDocument:
		urls := rule.MediaURLs()
		if len(urls) == 0 {
			opts.Kind = whatsapp.KindText
			s.sender.Send(ctx, number, body, opts)
			return
		}
		for i, url := range urls {
			caption := ""
			if i == 0 {
				caption = body
			}
			mediaOpts := opts
			mediaOpts.MediaURL = url
			s.sender.Send(ctx, number, caption, mediaOpts)
		}

	case whatsapp.KindButtons:
		opts.Buttons = rule.OptionTitles()
		s.sender.Send(ctx, number, body, opts)

	case whatsapp.KindList:
		titles := rule.OptionTitles()
		rows := make([]whatsapp.ListRow, 0, len(titles))
		for i, title := range titles {
			rows = append(rows, whatsapp.ListRow{Id: fmt.Sprintf("opt_%d", i), Title: title})
		}
		opts.Sections = []whatsapp.ListSection{{Title: "Opciones", Rows: rows}}
		s.sender.Send(ctx, number, body, opts)

	default:
		opts.Kind = whatsapp.KindText
		s.sender.Send(ctx, number, body, opts)
	}
}

// persist upserts the chat state. An empty status keeps whatever status the
// row already holds.
func (s *FlowService) persist(ctx context.Context, number, step, status string) {
	state := &entity.ChatState{
		Number:       number,
		Step:         step,
		Status:       status,
		LastActivity: s.now(),
	}
	if err := s.states.Upsert(ctx, state); err != nil {
		s.log.Error("flow_service", "state not persisted", map[string]interface{}{
			"number": number, "step": step, "error": err.Error(),
		})
	}
}
