package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiProvider completes prompts with Google's Gemini models.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
}

func NewGeminiProvider(ctx context.Context, apiKey, defaultModel string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := strings.TrimSpace(defaultModel)
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiProvider{client: client, defaultModel: model}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *GeminiProvider) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if p == nil || p.client == nil {
		return "", fmt.Errorf("gemini provider is not initialized")
	}
	if strings.TrimSpace(prompt.User) == "" {
		return "", fmt.Errorf("prompt is empty")
	}

	name := strings.TrimSpace(prompt.Model)
	if name == "" || !strings.HasPrefix(name, "gemini") {
		name = p.defaultModel
	}
	model := p.client.GenerativeModel(name)
	if system := strings.TrimSpace(prompt.System); system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
	if prompt.Temperature != nil {
		model.SetTemperature(float32(*prompt.Temperature))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt.User))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini response missing candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	content := strings.TrimSpace(b.String())
	if content == "" {
		return "", fmt.Errorf("gemini response was empty")
	}
	return content, nil
}
