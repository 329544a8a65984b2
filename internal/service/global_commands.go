package service

import "github.com/SantiagoCTB/whatsapp-ia/pkg/normalize"

// GlobalCommands recognizes flow-restart keywords that bypass the debounce
// buffer entirely. A command is a single-token message from the synonym set.
type GlobalCommands struct {
	synonyms map[string]struct{}
}

func NewGlobalCommands(extra ...string) *GlobalCommands {
	words := []string{
		"reset", "reiniciar", "reinicio",
		"menu", "inicio", "empezar",
		"ayuda", "help",
	}
	words = append(words, extra...)

	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if n := normalize.Normalize(w); n != "" {
			set[n] = struct{}{}
		}
	}
	return &GlobalCommands{synonyms: set}
}

// Matches reports whether the raw text is a restart command.
func (g *GlobalCommands) Matches(text string) bool {
	tokens := normalize.Tokens(text)
	if len(tokens) != 1 {
		return false
	}
	_, ok := g.synonyms[tokens[0]]
	return ok
}
