package entity

import (
	"encoding/json"
	"strings"
)

// Rule maps (step, trigger) to a response and a transition. Trigger holds a
// comma-separated set of patterns; the literal "*" matches any input.
// NextStep may be a comma-separated chain where only the last hop persists.
type Rule struct {
	Id       int64  `gorm:"primaryKey;autoIncrement"`
	Step     string `gorm:"index;size:100"`
	Trigger  string `gorm:"column:input;size:255"`
	Response string `gorm:"type:text"`
	NextStep string `gorm:"size:255"`
	Kind     string `gorm:"column:response_kind;size:30"` // texto, image, lista, boton, audio, video, document, flow
	MediaURL string `gorm:"type:text"`                    // "||"-separated list for multi-media rules
	Options  string `gorm:"type:text"`                    // JSON array of option titles for lista/boton rules
	RoleId   *int64
	Compute  string `gorm:"size:30"`  // "", "area", "linear"
	Handler  string `gorm:"size:100"` // registered handler name, empty for plain rules
}

func (Rule) TableName() string {
	return "reglas"
}

// Triggers returns the individual trigger patterns, trimmed.
func (r Rule) Triggers() []string {
	parts := strings.Split(r.Trigger, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsWildcard reports whether any trigger pattern is the literal "*".
func (r Rule) IsWildcard() bool {
	for _, t := range r.Triggers() {
		if t == "*" {
			return true
		}
	}
	return false
}

// NextSteps returns the transition chain, trimmed, possibly empty.
func (r Rule) NextSteps() []string {
	if strings.TrimSpace(r.NextStep) == "" {
		return nil
	}
	parts := strings.Split(r.NextStep, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// OptionTitles parses the Options JSON array. Malformed JSON yields nil so a
// broken menu degrades to plain text instead of failing the turn.
func (r Rule) OptionTitles() []string {
	if strings.TrimSpace(r.Options) == "" {
		return nil
	}
	var titles []string
	if err := json.Unmarshal([]byte(r.Options), &titles); err != nil {
		return nil
	}
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// MediaURLs returns the media list split on "||", trimmed.
func (r Rule) MediaURLs() []string {
	if strings.TrimSpace(r.MediaURL) == "" {
		return nil
	}
	parts := strings.Split(r.MediaURL, "||")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
