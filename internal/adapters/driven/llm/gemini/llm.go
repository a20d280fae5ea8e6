// Package gemini provides LLM and embedding adapters for Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultLLMModel       = "gemini-1.5-flash-latest"
	DefaultEmbeddingModel = "text-embedding-004"

	// DefaultEmbeddingDimensions is the vector size of text-embedding-004.
	DefaultEmbeddingDimensions = 768
)

const (
	roleUser  = "user"
	roleModel = "model"
)

// Config holds configuration for the Gemini services.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the model name. Defaults depend on the service.
	Model string

	// Endpoint overrides the API endpoint, mainly for tests.
	Endpoint string
}

func newClient(ctx context.Context, cfg Config) (*genai.Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return client, nil
}

// LLMService provides LLM operations using Gemini.
type LLMService struct {
	client *genai.Client
	model  string
}

// NewLLMService creates a new Gemini LLM service.
func NewLLMService(ctx context.Context, cfg Config) (*LLMService, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &LLMService{client: client, model: cfg.Model}, nil
}

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	model := s.generativeModel(opts.MaxTokens, opts.Temperature, opts.JSON)
	if len(opts.StopWords) > 0 {
		model.StopSequences = opts.StopWords
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	return responseText(resp)
}

// Chat conducts a multi-turn conversation. System messages become the
// model's system instruction.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	model := s.generativeModel(opts.MaxTokens, opts.Temperature, opts.JSON)

	var system []string
	var history []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant":
			history = append(history, &genai.Content{Role: roleModel, Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			history = append(history, &genai.Content{Role: roleUser, Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(history) == 0 || history[len(history)-1].Role != roleUser {
		return "", errors.New("gemini: chat must end with a user message")
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}

	session := model.StartChat()
	last := history[len(history)-1]
	session.History = history[:len(history)-1]

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("gemini: send message: %w", err)
	}
	return responseText(resp)
}

func (s *LLMService) generativeModel(maxTokens int, temperature float64, jsonMode bool) *genai.GenerativeModel {
	model := s.client.GenerativeModel(s.model)
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens)) //nolint:gosec // bounded by caller
	}
	if temperature > 0 {
		model.SetTemperature(float32(temperature))
	}
	if jsonMode {
		model.ResponseMIMEType = "application/json"
	}
	return model
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String(), nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by fetching the model metadata.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.GenerativeModel(s.model).Info(ctx); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *LLMService) Close() error {
	return s.client.Close()
}
