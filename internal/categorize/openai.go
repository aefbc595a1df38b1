package categorize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const systemPrompt = "You are a news classifier. You answer with a single category label and nothing else."

// OpenAIClassifier calls an OpenAI-compatible chat completions endpoint. One
// request per article, non-streaming, temperature 0.
type OpenAIClassifier struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ Classifier = (*OpenAIClassifier)(nil)

// NewOpenAIClassifier takes the API base URL, e.g. https://api.openai.com/v1.
func NewOpenAIClassifier(endpoint, model, apiKey string, timeout time.Duration) *OpenAIClassifier {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &OpenAIClassifier{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClassifier) Classify(ctx context.Context, prompt string) (string, error) {
	if c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("classifier misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   10,
	})
	if err != nil {
		return "", fmt.Errorf("marshal classifier payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("classifier error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode classifier response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("classifier returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
