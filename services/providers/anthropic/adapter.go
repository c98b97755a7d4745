package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/services/providers"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 1024
)

// Adapter implements providers.Provider for the Anthropic Messages API
type Adapter struct {
	config providers.ProviderConfig
}

// NewAdapter creates a new Anthropic adapter
func NewAdapter(config providers.ProviderConfig) *Adapter {
	config = config.WithDefaults()
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.DefaultModel == "" {
		config.DefaultModel = defaultModel
	}
	return &Adapter{config: config}
}

// ID returns the provider id
func (a *Adapter) ID() models.ProviderID {
	return models.ProviderAnthropic
}

// Generate performs one non-streaming Messages call
func (a *Adapter) Generate(ctx context.Context, req *providers.GenerateRequest) providers.Outcome {
	if !req.Credential.Configured() {
		return providers.Fail(providers.ErrorKindUnconfigured, "no valid credential")
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	opts := []option.RequestOption{
		option.WithBaseURL(a.config.BaseURL),
		option.WithAPIKey(req.Credential.Key()),
		option.WithMaxRetries(a.config.MaxRetries),
	}
	for k, v := range a.config.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	client := anthropic.NewClient(opts...)

	model := req.Model
	if model == "" {
		model = a.config.DefaultModel
	}

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: defaultMaxTokens,
		Messages:  toAnthropicMessages(providers.BuildTurns(req.History, req.Message)),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			err = providers.NewProviderError(string(a.ID()), "api_error", http.StatusText(apiErr.StatusCode), apiErr.StatusCode, err)
		}
		return providers.FailureFromError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return providers.Fail(providers.ErrorKindUnknown, "empty response")
	}

	return providers.Success(out, providers.Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	})
}

// toAnthropicMessages converts canonical turns, merging consecutive turns of
// the same role since the API requires strict user/assistant alternation
// starting with a user turn.
func toAnthropicMessages(turns []providers.Turn) []anthropic.MessageParam {
	merged := make([]providers.Turn, 0, len(turns))
	for _, turn := range turns {
		if len(merged) == 0 && turn.Role == providers.RoleAssistant {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].Role == turn.Role {
			merged[n-1].Text += "\n\n" + turn.Text
			continue
		}
		merged = append(merged, turn)
	}

	messages := make([]anthropic.MessageParam, 0, len(merged))
	for _, turn := range merged {
		block := anthropic.NewTextBlock(turn.Text)
		if turn.Role == providers.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	return messages
}
