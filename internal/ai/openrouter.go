package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const providerOpenRouter = "openrouter"

type OpenRouterProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string
	AppName string
	Client  *http.Client
}

type openRouterMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterChatReq struct {
	Model    string          `json:"model"`
	Messages []openRouterMsg `json:"messages"`
	Stream   bool            `json:"stream"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message openRouterMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

func NewOpenRouterProvider(baseURL, apiKey, model, siteURL, appName string, timeout time.Duration) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenRouterProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		SiteURL: siteURL,
		AppName: appName,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (p *OpenRouterProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", newError(providerOpenRouter, KindConfiguration, errors.New("http client is nil"))
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", newError(providerOpenRouter, KindConfiguration, errors.New("api key is required"))
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return "", newError(providerOpenRouter, KindConfiguration, errors.New("model is required"))
	}

	reqBody := openRouterChatReq{Model: model, Messages: make([]openRouterMsg, 0, len(messages))}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, openRouterMsg{Role: m.Role, Content: m.Content})
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", newError(providerOpenRouter, KindFatal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", newError(providerOpenRouter, KindConfiguration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		req.Header.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		req.Header.Set("X-Title", p.AppName)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", classifyTransport(providerOpenRouter, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newError(providerOpenRouter, classifyStatus(resp.StatusCode), statusError(resp))
	}

	var decoded openRouterChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", newError(providerOpenRouter, KindTransient, errors.Wrap(err, "decode response"))
	}
	// errors can also arrive inside a 200 body
	if decoded.Error != nil && decoded.Error.Message != "" {
		kind := KindFatal
		if decoded.Error.Code != 0 {
			kind = classifyStatus(decoded.Error.Code)
		}
		return "", newError(providerOpenRouter, kind, errors.New(decoded.Error.Message))
	}
	if len(decoded.Choices) == 0 {
		return "", newError(providerOpenRouter, KindEmptyResult, errors.New("no choices returned"))
	}
	return decoded.Choices[0].Message.Content, nil
}
