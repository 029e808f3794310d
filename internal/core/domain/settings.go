package domain

import "time"

// ProviderKind identifies which variant backs the embedding or generation
// capability. The set is closed; anything else is rejected at startup.
type ProviderKind string

const (
	ProviderDisabled ProviderKind = "disabled" // Capability switched off
	ProviderMock     ProviderKind = "mock"     // Deterministic, in-process
	ProviderLocal    ProviderKind = "local"    // Self-hosted model server (Ollama API)
	ProviderHosted   ProviderKind = "hosted"   // OpenAI-compatible hosted API
)

// IsValid returns true if this is a known provider kind
func (p ProviderKind) IsValid() bool {
	switch p {
	case ProviderDisabled, ProviderMock, ProviderLocal, ProviderHosted:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider requires an API key
func (p ProviderKind) RequiresAPIKey() bool {
	return p == ProviderHosted
}

// AISettings holds the provider configuration resolved once per process
type AISettings struct {
	Embedding EmbeddingSettings `json:"embedding" yaml:"embedding"`
	LLM       LLMSettings       `json:"llm" yaml:"llm"`
}

// EmbeddingSettings configures the embedding provider
type EmbeddingSettings struct {
	Provider   ProviderKind  `json:"provider" yaml:"provider"`
	Model      string        `json:"model" yaml:"model"`
	APIKey     string        `json:"-" yaml:"api_key"` // Never serialize to JSON
	BaseURL    string        `json:"base_url,omitempty" yaml:"base_url"`
	Dimensions int           `json:"dimensions" yaml:"dimensions"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
	CacheSize  int           `json:"cache_size" yaml:"cache_size"`
}

// IsConfigured returns true if embedding settings select a working provider
func (e *EmbeddingSettings) IsConfigured() bool {
	if e.Provider == "" || e.Provider == ProviderDisabled {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// DefaultEmbeddingSettings returns the defaults used when nothing is configured
func DefaultEmbeddingSettings() EmbeddingSettings {
	return EmbeddingSettings{
		Provider:   ProviderDisabled,
		Model:      "nomic-embed-text",
		BaseURL:    "http://localhost:11434",
		Dimensions: 768,
		Timeout:    10 * time.Second,
		CacheSize:  1024,
	}
}

// LLMSettings configures the text generator used for query rewriting
type LLMSettings struct {
	Provider ProviderKind  `json:"provider" yaml:"provider"`
	Model    string        `json:"model" yaml:"model"`
	APIKey   string        `json:"-" yaml:"api_key"` // Never serialize to JSON
	BaseURL  string        `json:"base_url,omitempty" yaml:"base_url"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

// IsConfigured returns true if LLM settings select a working provider
func (l *LLMSettings) IsConfigured() bool {
	if l.Provider == "" || l.Provider == ProviderDisabled {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// DefaultLLMSettings returns the defaults used when nothing is configured
func DefaultLLMSettings() LLMSettings {
	return LLMSettings{
		Provider: ProviderDisabled,
		Model:    "llama3.2",
		BaseURL:  "http://localhost:11434",
		Timeout:  15 * time.Second,
	}
}

// ExpansionSettings configures the query expansion engine
type ExpansionSettings struct {
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	MaxExpansions int           `json:"max_expansions" yaml:"max_expansions"`
	Stemming      bool          `json:"stemming" yaml:"stemming"`
	Synonyms      bool          `json:"synonyms" yaml:"synonyms"`
	LLMRewrite    bool          `json:"llm_rewrite" yaml:"llm_rewrite"`
	SynonymsFile  string        `json:"synonyms_file,omitempty" yaml:"synonyms_file"`
	LLMMaxVariant int           `json:"llm_max_variants" yaml:"llm_max_variants"`
	CacheTTL      time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
	Parallelism   int           `json:"parallelism" yaml:"parallelism"`
}

// DefaultExpansionSettings returns the expansion defaults
func DefaultExpansionSettings() ExpansionSettings {
	return ExpansionSettings{
		Enabled:       true,
		MaxExpansions: 4,
		Stemming:      true,
		Synonyms:      true,
		LLMRewrite:    false,
		LLMMaxVariant: 3,
		CacheTTL:      10 * time.Minute,
		Parallelism:   4,
	}
}
