package embedding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	jinaBaseURL   = "https://api.jina.ai/v1"
	ollamaBaseURL = "http://localhost:11434/v1"

	defaultTimeout = 30 * time.Second
)

// OpenAIEmbedder talks to any endpoint implementing the OpenAI
// /embeddings API.
type OpenAIEmbedder struct {
	provider  string
	apiKey    string
	model     string
	baseURL   string
	dimension int
	client    *http.Client
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type Options struct {
	APIKeyEnv string
	Model     string
	BaseURL   string
	Dimension int
	Timeout   time.Duration
}

func NewOpenAIEmbedder(opts Options) (*OpenAIEmbedder, error) {
	if opts.APIKeyEnv == "" {
		opts.APIKeyEnv = "OPENAI_API_KEY"
	}
	if opts.Model == "" {
		opts.Model = "text-embedding-3-small"
	}
	return newKeyedEmbedder("openai", opts, openAIBaseURL)
}

// NewGeminiEmbedder uses Gemini's OpenAI-compatible endpoint.
func NewGeminiEmbedder(opts Options) (*OpenAIEmbedder, error) {
	if opts.APIKeyEnv == "" {
		opts.APIKeyEnv = "GEMINI_API_KEY"
	}
	if opts.Model == "" {
		opts.Model = "text-embedding-004"
	}
	return newKeyedEmbedder("gemini", opts, geminiBaseURL)
}

func NewJinaEmbedder(opts Options) (*OpenAIEmbedder, error) {
	if opts.APIKeyEnv == "" {
		opts.APIKeyEnv = "JINA_API_KEY"
	}
	if opts.Model == "" {
		opts.Model = "jina-embeddings-v3"
	}
	return newKeyedEmbedder("jina", opts, jinaBaseURL)
}

func NewOllamaEmbedder(opts Options) *OpenAIEmbedder {
	if opts.Model == "" {
		opts.Model = "nomic-embed-text"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = ollamaBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return newEmbedder("ollama", "ollama", opts)
}

func newKeyedEmbedder(provider string, opts Options, defaultURL string) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(opts.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", opts.APIKeyEnv)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultURL
	}
	return newEmbedder(provider, apiKey, opts), nil
}

func newEmbedder(provider, apiKey string, opts Options) *OpenAIEmbedder {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	dimension := opts.Dimension
	if dimension <= 0 {
		dimension = modelDimension(opts.Model)
	}
	return &OpenAIEmbedder{
		provider:  provider,
		apiKey:    apiKey,
		model:     opts.Model,
		baseURL:   opts.BaseURL,
		dimension: dimension,
		client:    &http.Client{Timeout: opts.Timeout},
	}
}

func modelDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-004", "text-embedding-005", "nomic-embed-text":
		return 768
	case "mxbai-embed-large", "jina-embeddings-v3":
		return 1024
	case "all-minilm":
		return 384
	default:
		return 1536
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in request-sized batches. Missing entries in the
// provider response are left nil.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	const maxBatch = 100
	all := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += maxBatch {
		end := i + maxBatch
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, embeddings...)
	}

	return all, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	jsonData, err := json.Marshal(embeddingRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(e.provider, resp.StatusCode, string(body))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return nil, fmt.Errorf("failed to parse response (body: %s): %w", preview, err)
	}

	if embResp.Error != nil {
		return nil, &Error{Provider: e.provider, Message: embResp.Error.Message}
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index >= 0 && data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
		}
	}

	return embeddings, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
