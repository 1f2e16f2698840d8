package ai

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	providerOpenAI     = "openai"
	DefaultOpenAIModel = "gpt-4o-mini"
)

type OpenAIProvider struct {
	client openai.Client
	model  string
	hasKey bool
}

// NewOpenAIProvider never fails; a missing key surfaces as a configuration
// error on the first call so the service can still start and report health.
func NewOpenAIProvider(apiKey, baseURL, model string, timeout time.Duration) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// retries belong to the job pipeline, not the client
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
		hasKey: strings.TrimSpace(apiKey) != "",
	}
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if !p.hasKey {
		return "", newError(providerOpenAI, KindConfiguration, errors.New("api key is required"))
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	for _, m := range messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(completion.Choices) == 0 {
		return "", newError(providerOpenAI, KindEmptyResult, errors.New("no completion choices returned"))
	}
	return completion.Choices[0].Message.Content, nil
}

func classifyOpenAI(err error) *Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return newError(providerOpenAI, classifyStatus(apiErr.StatusCode), err)
	}
	return classifyTransport(providerOpenAI, err)
}
