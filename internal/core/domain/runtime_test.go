package domain

import (
	"testing"
)

func TestNewRuntimeConfig(t *testing.T) {
	config := NewRuntimeConfig("postgres")

	if config == nil {
		t.Fatal("expected non-nil config")
	}
	if config.StoreDialect != "postgres" {
		t.Errorf("expected postgres, got %s", config.StoreDialect)
	}
	if config.EmbeddingAvailable() {
		t.Error("expected embedding to be unavailable initially")
	}
	if config.LLMAvailable() {
		t.Error("expected LLM to be unavailable initially")
	}
}

func TestRuntimeConfig_EffectiveSearchMode(t *testing.T) {
	config := NewRuntimeConfig("sqlite")

	if got := config.EffectiveSearchMode(); got != SearchModeFulltext {
		t.Errorf("expected fulltext without embeddings, got %s", got)
	}

	config.SetEmbeddingAvailable(true)
	if got := config.EffectiveSearchMode(); got != SearchModeHybrid {
		t.Errorf("expected hybrid with embeddings, got %s", got)
	}

	config.SetLLMAvailable(true)
	if !config.LLMAvailable() {
		t.Error("expected LLM to be available after setting")
	}
}

func TestSearchMode_RequiresEmbedding(t *testing.T) {
	tests := []struct {
		mode SearchMode
		want bool
	}{
		{SearchModeFulltext, false},
		{SearchModeSemantic, true},
		{SearchModeHybrid, true},
	}

	for _, tt := range tests {
		if got := tt.mode.RequiresEmbedding(); got != tt.want {
			t.Errorf("%s.RequiresEmbedding() = %v, want %v", tt.mode, got, tt.want)
		}
	}
}
