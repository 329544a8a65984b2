package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobalCommandsMatch(t *testing.T) {
	commands := NewGlobalCommands()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "plain reset", text: "reset", want: true},
		{name: "shouted with punctuation", text: "¡RESET!", want: true},
		{name: "accented menu", text: "Menú", want: true},
		{name: "help synonym", text: "ayuda", want: true},
		{name: "command inside sentence", text: "quiero ver el menu", want: false},
		{name: "ordinary text", text: "hola", want: false},
		{name: "empty", text: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commands.Matches(tt.text))
		})
	}
}

func TestGlobalCommandsExtraSynonyms(t *testing.T) {
	commands := NewGlobalCommands("volver")
	assert.True(t, commands.Matches("Volver"))
}
