package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-3.5-turbo"

	// GrokBaseURL is xAI's OpenAI-compatible endpoint
	GrokBaseURL = "https://api.x.ai/v1"
	grokModel   = "grok-2"
)

// Adapter implements providers.Provider for any OpenAI-compatible chat completions API
type Adapter struct {
	id     models.ProviderID
	config providers.ProviderConfig
}

// NewOpenAIAdapter creates the adapter for OpenAI itself
func NewOpenAIAdapter(config providers.ProviderConfig) *Adapter {
	return newAdapter(models.ProviderOpenAI, config, defaultBaseURL, defaultModel)
}

// NewGrokAdapter creates the adapter for xAI Grok, which speaks the same protocol
func NewGrokAdapter(config providers.ProviderConfig) *Adapter {
	return newAdapter(models.ProviderGrok, config, GrokBaseURL, grokModel)
}

func newAdapter(id models.ProviderID, config providers.ProviderConfig, baseURL, model string) *Adapter {
	config = config.WithDefaults()
	if config.BaseURL == "" {
		config.BaseURL = baseURL
	}
	if config.DefaultModel == "" {
		config.DefaultModel = model
	}
	return &Adapter{id: id, config: config}
}

// ID returns the provider id
func (a *Adapter) ID() models.ProviderID {
	return a.id
}

// Generate performs one non-streaming chat completion
func (a *Adapter) Generate(ctx context.Context, req *providers.GenerateRequest) providers.Outcome {
	if !req.Credential.Configured() {
		return providers.Fail(providers.ErrorKindUnconfigured, "no valid credential")
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	client := openai.NewClient(a.clientOptions(req.Credential)...)

	params := openai.ChatCompletionNewParams{
		Messages: toOpenAIMessages(providers.BuildTurns(req.History, req.Message)),
		Model:    openai.ChatModel(a.model(req)),
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return providers.FailureFromError(a.normalizeError(err))
	}

	if len(resp.Choices) == 0 {
		return providers.Fail(providers.ErrorKindUnknown, "empty response")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return providers.Fail(providers.ErrorKindUnknown, "empty response")
	}

	return providers.Success(text, providers.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	})
}

func (a *Adapter) model(req *providers.GenerateRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return a.config.DefaultModel
}

func (a *Adapter) clientOptions(cred providers.Credential) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithBaseURL(a.config.BaseURL),
		option.WithAPIKey(cred.Key()),
		option.WithMaxRetries(a.config.MaxRetries),
	}
	for k, v := range a.config.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	return opts
}

// normalizeError lifts the SDK's status code into a ProviderError
func (a *Adapter) normalizeError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return providers.NewProviderError(string(a.id), "api_error", http.StatusText(apiErr.StatusCode), apiErr.StatusCode, err)
	}
	return err
}

func toOpenAIMessages(turns []providers.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case providers.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Text))
		default:
			messages = append(messages, openai.UserMessage(turn.Text))
		}
	}
	return messages
}
