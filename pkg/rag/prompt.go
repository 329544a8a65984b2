package rag

import (
	"fmt"
	"strings"

	"github.com/SantiagoCTB/whatsapp-ia/pkg/llm"
)

const systemInstruction = "Eres el asistente del catálogo. Responde únicamente " +
	"con la información de los fragmentos numerados; si la respuesta no está " +
	"ahí, dilo con claridad. Usa máximo %d frases cortas y los nombres " +
	"oficiales de la lista, no las variantes con errores de escaneo."

// buildPrompt assembles the grounded prompt: bounded history, numbered
// reference excerpts with page/SKU annotations, and the canonical entity
// names so the model never echoes OCR-garbled variants.
func buildPrompt(question string, refs []Reference, history []llm.Message, entityNames []string) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Conversación reciente:\n")
		for _, msg := range history {
			role := "Cliente"
			if msg.Role == "assistant" {
				role = "Bot"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, msg.Content)
		}
		b.WriteString("\n")
	}

	if len(entityNames) > 0 {
		b.WriteString("Nombres oficiales del catálogo:\n")
		for _, name := range entityNames {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("\n")
	}

	b.WriteString("Fragmentos del catálogo:\n")
	for i, ref := range refs {
		fmt.Fprintf(&b, "[%d]", i+1)
		if ref.Page > 0 {
			fmt.Fprintf(&b, " (pág. %d)", ref.Page)
		}
		if len(ref.SKUs) > 0 {
			fmt.Fprintf(&b, " (SKU %s)", strings.Join(ref.SKUs, ", "))
		}
		fmt.Fprintf(&b, " %s\n", ref.Text)
	}

	fmt.Fprintf(&b, "\nPregunta del cliente: %s", question)
	return b.String()
}
