// Package ollama implements llm.Provider against a local Ollama server's
// /api/chat endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/user/sessionlog/pkg/llm"
)

const DefaultBaseURL = "http://localhost:11434"

// Client implements the llm.Provider interface for Ollama.
type Client struct {
	config     *llm.Config
	httpClient *http.Client
}

// New creates an Ollama client. An empty BaseURL uses DefaultBaseURL.
func New(config *llm.Config) *Client {
	return &Client{
		config:     config,
		httpClient: config.HTTPClient(),
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

type options struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Message         llm.Message `json:"message"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// Complete sends a single non-streaming chat request.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	reqBody := chatRequest{
		Model:    c.config.Model,
		Messages: messages,
		Stream:   false,
	}
	if c.config.Temperature != 0 || c.config.MaxTokens > 0 {
		reqBody.Options = &options{Temperature: c.config.Temperature, NumPredict: c.config.MaxTokens}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var respBody []byte
	err = c.config.Retry.Do(ctx, func() error {
		respBody, err = c.post(ctx, body)
		return err
	})
	if err != nil {
		return nil, err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return &llm.Response{
		Content: chatResp.Message.Content,
		Usage: llm.Usage{
			InputTokens:  chatResp.PromptEvalCount,
			OutputTokens: chatResp.EvalCount,
			TotalTokens:  chatResp.PromptEvalCount + chatResp.EvalCount,
		},
	}, nil
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	base := c.config.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	url := strings.TrimRight(base, "/") + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &llm.APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
