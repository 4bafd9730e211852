package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/darshil0/DineAI/internal/port"
)

// Client talks to any OpenAI-compatible /chat/completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

var _ port.LLM = (*Client)(nil)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

var providers = map[string]struct {
	baseURL   string
	keyEnvVar string
	model     string
}{
	"gemini":   {"https://generativelanguage.googleapis.com/v1beta/openai", "GEMINI_API_KEY", "gemini-2.5-flash"},
	"openai":   {"https://api.openai.com/v1", "OPENAI_API_KEY", "gpt-4o-mini"},
	"deepseek": {"https://api.deepseek.com/v1", "DEEPSEEK_API_KEY", "deepseek-chat"},
	"local":    {"http://localhost:11434/v1", "", "llama3.1"},
}

type Options struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKeyEnv string
	Timeout   time.Duration
}

func NewClient(opts Options) (*Client, error) {
	p, ok := providers[opts.Provider]
	if !ok && opts.BaseURL == "" {
		return nil, fmt.Errorf("unknown provider: %s (set base_url for custom endpoints)", opts.Provider)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = p.baseURL
	}
	model := opts.Model
	if model == "" {
		model = p.model
	}
	keyEnv := opts.APIKeyEnv
	if keyEnv == "" {
		keyEnv = p.keyEnvVar
	}

	var apiKey string
	if keyEnv != "" {
		apiKey = os.Getenv(keyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found. Set %s environment variable", keyEnv)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: 0.2,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var messages []ChatMessage
	if systemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: userPrompt})
	return c.Chat(ctx, messages)
}

// Chat sends a chat completion request and returns the first choice.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	jsonData, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    c.temperature,
		MaxTokens:      4000,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, preview)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	return chatResp.Choices[0].Message.Content, nil
}

func (c *Client) ModelName() string {
	return c.model
}
