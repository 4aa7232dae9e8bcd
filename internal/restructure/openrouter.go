package restructure

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1/"
	DefaultOpenRouterModel   = "google/gemini-2.0-flash-exp:free"
)

// OpenRouter restructures text through OpenRouter's OpenAI-compatible chat
// completions endpoint.
type OpenRouter struct {
	client openai.Client
	model  string
}

func NewOpenRouter(apiKey, model, baseURL string, timeout time.Duration) *OpenRouter {
	if model == "" {
		model = DefaultOpenRouterModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		// Retries are owned by the pipeline worker.
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	return &OpenRouter{client: client, model: model}
}

func (o *OpenRouter) Model() string { return o.model }

func (o *OpenRouter) Restructure(ctx context.Context, raw string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(BuildPrompt(raw)),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", classify("openrouter", apiErr.StatusCode, err)
		}
		return "", classify("openrouter", 0, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return finish(resp.Choices[0].Message.Content)
}
