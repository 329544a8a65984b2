package factory

import (
	"fmt"

	"github.com/SantiagoCTB/whatsapp-ia/pkg/llm"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/llm/ollama"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/llm/openai"
)

func NewLLMProvider(providerType, modelName, ollamaBaseURL, openaiBaseURL, openaiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if ollamaBaseURL == "" {
			ollamaBaseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(ollamaBaseURL, modelName), nil
	case "openai":
		return openai.NewOpenAIProvider(openaiBaseURL, openaiKey, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
