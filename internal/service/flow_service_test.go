package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SantiagoCTB/whatsapp-ia/internal/config"
	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/specification"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/whatsapp"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

type fakeRuleRepo struct {
	byStep map[string][]*entity.Rule
}

func (f *fakeRuleRepo) FindByStep(_ context.Context, step string) ([]*entity.Rule, error) {
	return f.byStep[step], nil
}

func (f *fakeRuleRepo) FindOne(context.Context, ...specification.Specification) (*entity.Rule, error) {
	return nil, nil
}

func (f *fakeRuleRepo) FindAll(context.Context, ...specification.Specification) ([]*entity.Rule, error) {
	var all []*entity.Rule
	for _, rules := range f.byStep {
		all = append(all, rules...)
	}
	return all, nil
}

func (f *fakeRuleRepo) CatalogKeywords(context.Context) ([]*entity.CatalogKeyword, error) {
	return nil, nil
}

// fakeStateRepo mirrors the SQL upsert semantics: an empty incoming status
// keeps the stored one and a blocked status survives ordinary writes.
type fakeStateRepo struct {
	states map[string]*entity.ChatState
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]*entity.ChatState)}
}

func (f *fakeStateRepo) Find(_ context.Context, number string) (*entity.ChatState, error) {
	if s, ok := f.states[number]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStateRepo) Upsert(_ context.Context, state *entity.ChatState) error {
	stored, exists := f.states[state.Number]
	next := *state
	if exists {
		switch {
		case state.Status == "":
			next.Status = stored.Status
		case stored.Status == entity.StatusBlocked && state.Status != entity.StatusBlocked:
			next.Status = stored.Status
		}
	}
	f.states[state.Number] = &next
	return nil
}

func (f *fakeStateRepo) SetStatus(_ context.Context, number, status string) error {
	if s, ok := f.states[number]; ok {
		s.Status = status
	}
	return nil
}

func (f *fakeStateRepo) Delete(_ context.Context, number string) error {
	delete(f.states, number)
	return nil
}

type fakeRoleRepo struct {
	assigned []int64
}

func (f *fakeRoleRepo) Assign(_ context.Context, _ string, roleId int64) error {
	f.assigned = append(f.assigned, roleId)
	return nil
}

type sentMessage struct {
	Number string
	Body   string
	Opts   whatsapp.SendOptions
}

type fakeSender struct {
	sent []sentMessage
	ok   bool
}

func (f *fakeSender) Send(_ context.Context, number, body string, opts whatsapp.SendOptions) bool {
	f.sent = append(f.sent, sentMessage{Number: number, Body: body, Opts: opts})
	return f.ok
}

func flowFixture(rules map[string][]*entity.Rule) (*FlowService, *fakeStateRepo, *fakeSender, *fakeRoleRepo) {
	states := newFakeStateRepo()
	sender := &fakeSender{ok: true}
	roles := &fakeRoleRepo{}
	cfg := config.FlowConfig{
		InitialStep:    "menu_principal",
		SessionTimeout: 600,
		FallbackText:   "No entendí tu mensaje.",
	}
	svc := NewFlowService(cfg, &fakeRuleRepo{byStep: rules}, states, roles,
		NewHandlerRegistry(), sender, nil, nopLogger{})
	return svc, states, sender, roles
}

func TestHandleTextBootstrapsNewSession(t *testing.T) {
	svc, states, sender, _ := flowFixture(map[string][]*entity.Rule{
		"menu_principal": {
			{Id: 1, Step: "menu_principal", Trigger: "iniciar", Response: "Bienvenido"},
		},
	})

	svc.HandleText(context.Background(), "573001112233", "hola, buenas tardes")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Bienvenido", sender.sent[0].Body)

	state := states.states["573001112233"]
	require.NotNil(t, state)
	assert.Equal(t, "menu_principal", state.Step)
}

func TestExactMatchBeatsWildcard(t *testing.T) {
	svc, _, sender, _ := flowFixture(map[string][]*entity.Rule{
		"menu_principal": {
			{Id: 1, Step: "menu_principal", Trigger: "*", Response: "comodin"},
			{Id: 2, Step: "menu_principal", Trigger: "hola", Response: "exacto"},
		},
	})

	svc.Restart(context.Background(), "n1") // seed session at menu_principal
	sender.sent = nil

	svc.HandleText(context.Background(), "n1", "¡HOLA!")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "exacto", sender.sent[0].Body)
}

func TestExactMatchLowestRuleIdWins(t *testing.T) {
	svc, _, sender, _ := flowFixture(map[string][]*entity.Rule{
		"menu_principal": {
			{Id: 3, Step: "menu_principal", Trigger: "si, claro", Response: "primero"},
			{Id: 7, Step: "menu_principal", Trigger: "si", Response: "segundo"},
		},
	})

	svc.Restart(context.Background(), "n1")
	sender.sent = nil

	svc.HandleText(context.Background(), "n1", "sí")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "primero", sender.sent[0].Body)
}

func TestMultiHopChainPersistsOnlyLastStep(t *testing.T) {
	svc, states, sender, _ := flowFixture(map[string][]*entity.Rule{
		"menu_principal": {
			{Id: 1, Step: "menu_principal", Trigger: "iniciar", Response: "menu"},
			{Id: 2, Step: "menu_principal", Trigger: "2", Response: "vamos", NextStep: "intro,precios,cierre"},
		},
		"intro": {
			{Id: 10, Step: "intro", Trigger: "*", Response: "te cuento", NextStep: "nunca"},
		},
		"precios": {
			{Id: 11, Step: "precios", Trigger: "*", Response: "la tarifa"},
		},
		"cierre": {
			{Id: 12, Step: "cierre", Trigger: "*", Response: "no debe salir"},
		},
	})

	svc.HandleText(context.Background(), "n1", "primer contacto")
	sender.sent = nil

	svc.HandleText(context.Background(), "n1", "2")

	require.Len(t, sender.sent, 3)
	assert.Equal(t, "vamos", sender.sent[0].Body)
	assert.Equal(t, "te cuento", sender.sent[1].Body)
	assert.Equal(t, "la tarifa", sender.sent[2].Body)

	state := states.states["n1"]
	require.NotNil(t, state)
	assert.Equal(t, "cierre", state.Step)
}

func TestNoMatchSendsFallbackAndMarksStatus(t *testing.T) {
	svc, states, sender, _ := flowFixture(map[string][]*entity.Rule{
		"menu_principal": {
			{Id: 1, Step: "menu_principal", Trigger: "iniciar", Response: "menu"},
			{Id: 2, Step: "menu_principal", Trigger: "1", Response: "uno"},
		},
	})

	svc.HandleText(context.Background(), "n1", "hola")
	sender.sent = nil

	svc.HandleText(context.Background(), "n1", "cualquier cosa")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "No entendí tu mensaje.", sender.sent[0].Body)

	state := states.states["n1"]
	require.NotNil(t, state)
	assert.Equal(t, entity.StatusNoRule, state.Status)
	assert.Equal(t, "menu_principal", state.Step)
}

func TestExpiredSessionBootstrapsAgain(t *testing.T) {
	svc, states, sender, _ := flowFixture(map[string][]*entity.Rule{
		"menu_principal": {
			{Id: 1, Step: "menu_principal", Trigger: "iniciar", Response: "Bienvenido"},
		},
	})
	states.states["n1"] = &entity.ChatState{
		Number:       "n1",
		Step:         "precios",
		LastActivity: time.Now().Add(-20 * time.Minute),
	}

	svc.HandleText(context.Background(), "n1", "sigo aquí")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Bienvenido", sender.sent[0].Body)
	assert.Equal(t, "menu_principal", states.states["n1"].Step)
}

func TestBlockedStatusSurvivesOrdinaryTurns(t *testing.T) {
	svc, states, _, _ := flowFixture(map[string][]*entity.Rule{
		"menu_principal": {
			{Id: 1, Step: "menu_principal", Trigger: "hola", Response: "hola"},
		},
	})
	states.states["n1"] = &entity.ChatState{
		Number:       "n1",
		Step:         "menu_principal",
		Status:       entity.StatusBlocked,
		LastActivity: time.Now(),
	}

	svc.HandleText(context.Background(), "n1", "hola")

	assert.Equal(t, entity.StatusBlocked, states.states["n1"].Status)
}

func TestInvalidMeasureKeepsStep(t *testing.T) {
	svc, states, sender, _ := flowFixture(map[string][]*entity.Rule{
		"menu_principal": {
			{Id: 1, Step: "menu_principal", Trigger: "iniciar", Response: "menu", NextStep: "medidas"},
		},
		"medidas": {
			{Id: 2, Step: "medidas", Trigger: "*", Response: "El área es {resultado} m2.",
				Handler: "medicion", Compute: "area", NextStep: "cierre"},
		},
	})

	svc.HandleText(context.Background(), "n1", "hola")
	sender.sent = nil

	svc.HandleText(context.Background(), "n1", "no sé")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Por favor ingresa la medida correcta.", sender.sent[0].Body)
	assert.Equal(t, "medidas", states.states["n1"].Step)

	sender.sent = nil
	svc.HandleText(context.Background(), "n1", "3 x 4")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "El área es 12 m2.", sender.sent[0].Body)
	assert.Equal(t, "cierre", states.states["n1"].Step)
}

func TestRuleAssignsRole(t *testing.T) {
	roleId := int64(7)
	svc, _, _, roles := flowFixture(map[string][]*entity.Rule{
		"menu_principal": {
			{Id: 1, Step: "menu_principal", Trigger: "iniciar", Response: "hola", RoleId: &roleId},
		},
	})

	svc.HandleText(context.Background(), "n1", "hola")

	require.Len(t, roles.assigned, 1)
	assert.Equal(t, roleId, roles.assigned[0])
}

func TestMediaRuleSendsEveryLinkCaptionFirst(t *testing.T) {
	svc, _, sender, _ := flowFixture(map[string][]*entity.Rule{
		"menu_principal": {
			{Id: 1, Step: "menu_principal", Trigger: "iniciar", Response: "Mira las fotos",
				Kind: whatsapp.KindImage, MediaURL: "http://a/1.jpg||http://a/2.jpg"},
		},
	})

	svc.HandleText(context.Background(), "n1", "hola")

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "Mira las fotos", sender.sent[0].Body)
	assert.Equal(t, "http://a/1.jpg", sender.sent[0].Opts.MediaURL)
	assert.Empty(t, sender.sent[1].Body)
	assert.Equal(t, "http://a/2.jpg", sender.sent[1].Opts.MediaURL)
}

func TestRestartDropsStateAndReplaysBootstrap(t *testing.T) {
	svc, states, sender, _ := flowFixture(map[string][]*entity.Rule{
		"menu_principal": {
			{Id: 1, Step: "menu_principal", Trigger: "iniciar", Response: "Bienvenido"},
		},
	})
	states.states["n1"] = &entity.ChatState{
		Number:       "n1",
		Step:         "precios",
		LastActivity: time.Now(),
	}

	svc.Restart(context.Background(), "n1")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Bienvenido", sender.sent[0].Body)
	assert.Equal(t, "menu_principal", states.states["n1"].Step)
}
