package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// DefaultOllamaURL and DefaultOllamaModel are used when not configured.
const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llama3.1:8b"
)

// Ollama talks to a local Ollama server's /api/chat endpoint.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates an Ollama gateway.
func NewOllama(baseURL, model string, hc *http.Client) *Ollama {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if hc == nil {
		hc = &http.Client{}
	}
	return &Ollama{baseURL: strings.TrimRight(baseURL, "/"), model: model, client: hc}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatReq struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
}

type ollamaChatResp struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (o *Ollama) Complete(ctx context.Context, system, user string, expectJSON bool) (string, error) {
	in := ollamaChatReq{
		Model: o.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	if expectJSON {
		in.Format = "json"
	}
	body, _ := json.Marshal(in)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", unavailable(ProviderOllama, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", unavailable(ProviderOllama, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", unavailable(ProviderOllama, fmt.Errorf("status %d", resp.StatusCode))
	}

	var out ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", unavailable(ProviderOllama, fmt.Errorf("decode: %w", err))
	}
	return out.Message.Content, nil
}
