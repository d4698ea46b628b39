package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultEndpoint = "https://api.perplexity.ai/v1/responses"

// PerplexityClient calls the Perplexity responses API.
type PerplexityClient struct {
	apiKey          string
	model           string
	endpoint        string
	maxOutputTokens int
	httpClient      *http.Client
}

// NewPerplexityClient creates a client for the given model. An empty model
// selects sonar-pro.
func NewPerplexityClient(apiKey, model string) (*PerplexityClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("perplexity API key is not set")
	}
	if model == "" {
		model = defaultModel
	}
	return &PerplexityClient{
		apiKey:          apiKey,
		model:           model,
		endpoint:        defaultEndpoint,
		maxOutputTokens: 2000,
		httpClient:      &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// SetEndpoint overrides the API endpoint (for testing).
func (c *PerplexityClient) SetEndpoint(url string) {
	c.endpoint = url
}

// SetMaxOutputTokens overrides the reply length cap. Values <= 0 are ignored.
func (c *PerplexityClient) SetMaxOutputTokens(n int) {
	if n > 0 {
		c.maxOutputTokens = n
	}
}

type apiRequest struct {
	Model           string         `json:"model"`
	Input           []inputMessage `json:"input"`
	Instructions    string         `json:"instructions"`
	Stream          bool           `json:"stream"`
	MaxOutputTokens int            `json:"max_output_tokens"`
}

type inputMessage struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends the system prompt and history and returns the assembled
// reply text with usage and cost.
func (c *PerplexityClient) Complete(ctx context.Context, system string, history []Message) (string, Usage, error) {
	input := make([]inputMessage, 0, len(history))
	for _, m := range history {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		input = append(input, inputMessage{Type: "message", Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(apiRequest{
		Model:           c.model,
		Input:           input,
		Instructions:    system,
		Stream:          false,
		MaxOutputTokens: c.maxOutputTokens,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", Usage{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("call model API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", Usage{}, fmt.Errorf("model API returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", Usage{}, fmt.Errorf("decode response: %w", err)
	}

	var text bytes.Buffer
	for _, item := range parsed.Output {
		if item.Type != "message" {
			continue
		}
		for _, chunk := range item.Content {
			if chunk.Type == "output_text" {
				text.WriteString(chunk.Text)
			}
		}
	}

	usage := Usage{
		Model:        c.model,
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
		CostUSD:      Cost(c.model, parsed.Usage.InputTokens, parsed.Usage.OutputTokens),
	}
	return text.String(), usage, nil
}
