package oracle

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI talks to the chat completions API (or any compatible endpoint).
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI gateway. baseURL overrides the API root, e.g.
// for a compatible proxy.
func NewOpenAI(apiKey, model, baseURL string, hc *http.Client) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("oracle: OpenAI API key is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if hc != nil {
		cfg.HTTPClient = hc
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (o *OpenAI) Complete(ctx context.Context, system, user string, expectJSON bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if expectJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", unavailable(ProviderOpenAI, err)
	}
	if len(resp.Choices) == 0 {
		return "", unavailable(ProviderOpenAI, errors.New("no choices in response"))
	}
	return resp.Choices[0].Message.Content, nil
}
