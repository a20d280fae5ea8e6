package domain

const unknownDescription = "Unknown"

// ProviderSettings is a tenant's stored credential for the conversation provider.
// The pipeline only reads it; it is looked up fresh for every operation.
type ProviderSettings struct {
	// AppID is the tenant.
	AppID string

	// APIKey is the provider access token.
	APIKey string

	// Enabled gates imports without discarding the key.
	Enabled bool
}

// IsUsable returns true if the settings allow provider calls.
func (s *ProviderSettings) IsUsable() bool {
	return s != nil && s.Enabled && s.APIKey != ""
}

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOpenAI is the OpenAI cloud API or any compatible endpoint.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGemini is Google's Gemini API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderGemini:
		return true
	default:
		return false
	}
}

// SupportsEmbeddings returns true if an embedding adapter exists for the provider.
func (p AIProvider) SupportsEmbeddings() bool {
	return p.IsValid()
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderGemini:
		return "Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL string

	// APIKey is the API key.
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	return l.Provider.IsValid() && l.APIKey != ""
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL string

	// APIKey is the API key.
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	return e.Provider.SupportsEmbeddings() && e.APIKey != ""
}
