package service

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
)

// ErrInvalidMeasure marks user input a computation handler cannot parse.
// The dispatcher replies with a retry prompt and does not advance state.
var ErrInvalidMeasure = errors.New("invalid measure input")

// ComputeHandler produces a rule response from the user's raw input. Rules
// reference handlers by name; unknown names are a configuration error
// rejected at startup, never a silent nil at dispatch time.
type ComputeHandler interface {
	Compute(input string, rule *entity.Rule) (string, error)
}

type HandlerRegistry struct {
	handlers map[string]ComputeHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	registry := &HandlerRegistry{handlers: make(map[string]ComputeHandler)}
	registry.Register("medicion", &measurementHandler{})
	return registry
}

func (r *HandlerRegistry) Register(name string, handler ComputeHandler) {
	r.handlers[name] = handler
}

func (r *HandlerRegistry) Resolve(name string) (ComputeHandler, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown handler %q", name)
	}
	return handler, nil
}

// EnsureKnown validates every handler name configured on the given rules.
func (r *HandlerRegistry) EnsureKnown(rules []*entity.Rule) error {
	for _, rule := range rules {
		if rule.Handler == "" {
			continue
		}
		if _, err := r.Resolve(rule.Handler); err != nil {
			return fmt.Errorf("rule %d: %w", rule.Id, err)
		}
	}
	return nil
}

var (
	areaPattern   = regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)\s*(?:x|\*)\s*(\d+(?:[.,]\d+)?)\s*$`)
	linearPattern = regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)\s*$`)
)

// measurementHandler evaluates the closed computation grammar: "area"
// multiplies two measures ("3 x 4"), "linear[:rate]" scales one measure.
// No generic expression evaluation.
type measurementHandler struct{}

func (h *measurementHandler) Compute(input string, rule *entity.Rule) (string, error) {
	compute := strings.TrimSpace(rule.Compute)
	var value float64

	switch {
	case compute == "area":
		m := areaPattern.FindStringSubmatch(input)
		if m == nil {
			return "", ErrInvalidMeasure
		}
		p1, err1 := parseMeasure(m[1])
		p2, err2 := parseMeasure(m[2])
		if err1 != nil || err2 != nil {
			return "", ErrInvalidMeasure
		}
		value = p1 * p2

	case compute == "linear" || strings.HasPrefix(compute, "linear:"):
		m := linearPattern.FindStringSubmatch(input)
		if m == nil {
			return "", ErrInvalidMeasure
		}
		measure, err := parseMeasure(m[1])
		if err != nil {
			return "", ErrInvalidMeasure
		}
		rate := 1.0
		if rest, ok := strings.CutPrefix(compute, "linear:"); ok {
			parsed, err := strconv.ParseFloat(rest, 64)
			if err != nil {
				return "", fmt.Errorf("rule %d: bad linear rate %q", rule.Id, rest)
			}
			rate = parsed
		}
		value = measure * rate

	default:
		return "", fmt.Errorf("rule %d: unknown compute template %q", rule.Id, compute)
	}

	formatted := strconv.FormatFloat(value, 'f', -1, 64)
	if strings.Contains(rule.Response, "{resultado}") {
		return strings.ReplaceAll(rule.Response, "{resultado}", formatted), nil
	}
	return strings.TrimSpace(rule.Response + " " + formatted), nil
}

func parseMeasure(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
