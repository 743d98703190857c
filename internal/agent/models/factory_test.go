package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/webchat-agent/server/internal/agent/model"
)

func testProviders() model.ProvidersConfig {
	cfg := model.ProvidersConfig{Default: "qwen:qwen3-max"}
	cfg.Qwen.APIKey = "qwen-key"
	cfg.Google.APIKey = "google-key"
	return cfg
}

func TestResolveWellFormedSelector(t *testing.T) {
	t.Parallel()

	f := NewFactory(testProviders())

	provider, name := f.Resolve("google:gemini-2.5-flash")
	assert.Equal(t, ProviderGoogle, provider)
	assert.Equal(t, "gemini-2.5-flash", name)

	provider, name = f.Resolve("qwen:qwen3-coder")
	assert.Equal(t, ProviderQwen, provider)
	assert.Equal(t, "qwen3-coder", name)

	// Provider matching is case-insensitive, model names keep their case.
	provider, name = f.Resolve("Google:Gemini-Pro")
	assert.Equal(t, ProviderGoogle, provider)
	assert.Equal(t, "Gemini-Pro", name)
}

func TestResolveFallsBackToDefault(t *testing.T) {
	t.Parallel()

	f := NewFactory(testProviders())

	cases := []struct {
		name     string
		selector string
	}{
		{"empty selector", ""},
		{"no separator", "gemini-pro"},
		{"missing model name", "google:"},
		{"missing provider", ":gemini-pro"},
		{"unknown provider", "openai:gpt-4o"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			provider, name := f.Resolve(tc.selector)
			assert.Equal(t, ProviderQwen, provider)
			assert.Equal(t, "qwen3-max", name)
		})
	}
}

func TestResolveSkipsUnconfiguredProvider(t *testing.T) {
	t.Parallel()

	// Google has no credentials here, so even a well-formed google selector
	// resolves to the default.
	cfg := model.ProvidersConfig{Default: "qwen:qwen3-max"}
	cfg.Qwen.APIKey = "qwen-key"
	f := NewFactory(cfg)

	provider, name := f.Resolve("google:gemini-2.5-flash")
	assert.Equal(t, ProviderQwen, provider)
	assert.Equal(t, "qwen3-max", name)
}

func TestResolveBrokenDefaultStillYieldsProvider(t *testing.T) {
	t.Parallel()

	cfg := model.ProvidersConfig{Default: "not-a-selector"}
	f := NewFactory(cfg)

	provider, name := f.Resolve("")
	assert.Equal(t, ProviderQwen, provider)
	assert.Equal(t, "not-a-selector", name)
}
