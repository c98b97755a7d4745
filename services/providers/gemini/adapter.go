package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/services/providers"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-pro"
)

// Adapter implements providers.Provider for Gemini's generateContent endpoint
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
}

// NewAdapter creates a new Gemini adapter
func NewAdapter(config providers.ProviderConfig) *Adapter {
	config = config.WithDefaults()
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.DefaultModel == "" {
		config.DefaultModel = defaultModel
	}

	return &Adapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// ID returns the provider id
func (a *Adapter) ID() models.ProviderID {
	return models.ProviderGemini
}

// Generate performs one generateContent request
func (a *Adapter) Generate(ctx context.Context, req *providers.GenerateRequest) providers.Outcome {
	if !req.Credential.Configured() {
		return providers.Fail(providers.ErrorKindUnconfigured, "no valid credential")
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = a.config.DefaultModel
	}

	body, err := json.Marshal(buildRequest(providers.BuildTurns(req.History, req.Message)))
	if err != nil {
		return providers.Failf(providers.ErrorKindUnknown, "failed to marshal request: %v", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", a.config.BaseURL, url.PathEscape(model))

	// Execute request with retry logic
	var status int
	var respBody []byte
	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(a.config.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return providers.FailureFromError(ctx.Err())
			}
		}

		status, respBody, err = a.do(ctx, endpoint, req.Credential.Key(), body)
		if err == nil && status < 500 {
			break
		}
	}

	if err != nil {
		return providers.FailureFromError(providers.NewProviderError(string(a.ID()), "HTTP_ERROR", "HTTP request failed", 0, err))
	}

	if status != http.StatusOK {
		return providers.FailureFromError(a.handleErrorResponse(status, respBody))
	}

	var resp generateContentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return providers.Failf(providers.ErrorKindUnknown, "failed to unmarshal response: %v", err)
	}

	text := strings.TrimSpace(resp.text())
	if text == "" {
		return providers.Fail(providers.ErrorKindUnknown, "empty response")
	}

	usage := providers.Usage{}
	if resp.UsageMetadata != nil {
		usage = providers.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}

	return providers.Success(text, usage)
}

func (a *Adapter) do(ctx context.Context, endpoint, key string, body []byte) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", key)
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return httpResp.StatusCode, nil, err
	}
	return httpResp.StatusCode, respBody, nil
}

// handleErrorResponse turns a Google API error payload into a ProviderError
func (a *Adapter) handleErrorResponse(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(string(a.ID()), "UNKNOWN_ERROR", string(body), statusCode, nil)
	}

	return providers.NewProviderError(
		string(a.ID()),
		errResp.Error.Status,
		errResp.Error.Status+": "+errResp.Error.Message,
		statusCode,
		nil,
	)
}

func buildRequest(turns []providers.Turn) *generateContentRequest {
	req := &generateContentRequest{Contents: make([]content, 0, len(turns))}
	for _, turn := range turns {
		role := "user"
		if turn.Role == providers.RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, content{
			Role:  role,
			Parts: []part{{Text: turn.Text}},
		})
	}
	return req
}

type generateContentRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates    []candidate    `json:"candidates,omitempty"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
}

type candidate struct {
	Content      *content `json:"content,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// text concatenates the parts of the first candidate
func (r *generateContentResponse) text() string {
	if len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}
