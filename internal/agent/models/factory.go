// Package models constructs chat-model capabilities from a client-supplied
// "provider:model" selector.
package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/webchat-agent/server/internal/agent/model"
	logx "github.com/webchat-agent/server/pkg/logger"
)

// Provider identifies a supported chat-model backend.
type Provider string

const (
	ProviderQwen   Provider = "qwen"
	ProviderGoogle Provider = "google"
)

// Factory builds bound chat models. Construction only captures
// configuration; it is safe to call CreateModel repeatedly.
type Factory struct {
	cfg model.ProvidersConfig
}

func NewFactory(cfg model.ProvidersConfig) *Factory {
	return &Factory{cfg: cfg}
}

// CreateModel resolves the selector and constructs a streaming-capable chat
// model for it. The returned model accepts tool bindings via WithTools.
func (f *Factory) CreateModel(ctx context.Context, selector string) (einomodel.ToolCallingChatModel, error) {
	provider, name := f.Resolve(selector)

	switch provider {
	case ProviderGoogle:
		return f.newGemini(ctx, name)
	default:
		return f.newQwen(ctx, name)
	}
}

// Resolve applies the selector fallback policy and returns the effective
// provider and model name.
//
// The policy deliberately never fails: an absent or malformed selector, an
// unknown provider, or a recognized provider without configured credentials
// all resolve to the configured default so a bad client-supplied value
// cannot take the endpoint down. Tightening this to fail loudly only
// requires changing this one function.
func (f *Factory) Resolve(selector string) (Provider, string) {
	provider, name, ok := splitSelector(selector)
	if ok && f.configured(provider) {
		return provider, name
	}

	if selector != "" {
		logx.Warn().Str("selector", selector).Str("default", f.cfg.Default).
			Msg("unusable model selector, falling back to default model")
	}

	defProvider, defName, ok := splitSelector(f.cfg.Default)
	if !ok {
		// A broken default still has to yield something usable.
		return ProviderQwen, f.cfg.Default
	}
	return defProvider, defName
}

// configured reports whether the provider has credentials to work with.
func (f *Factory) configured(p Provider) bool {
	switch p {
	case ProviderQwen:
		return f.cfg.Qwen.APIKey != ""
	case ProviderGoogle:
		return f.cfg.Google.APIKey != ""
	default:
		return false
	}
}

// splitSelector parses "<provider>:<modelName>". ok is false when the
// selector is malformed or names an unknown provider.
func splitSelector(selector string) (Provider, string, bool) {
	providerPart, name, found := strings.Cut(selector, ":")
	if !found || providerPart == "" || name == "" {
		return "", "", false
	}
	switch Provider(strings.ToLower(strings.TrimSpace(providerPart))) {
	case ProviderQwen:
		return ProviderQwen, name, true
	case ProviderGoogle:
		return ProviderGoogle, name, true
	default:
		return "", "", false
	}
}

func (f *Factory) newQwen(ctx context.Context, name string) (einomodel.ToolCallingChatModel, error) {
	cm, err := qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
		BaseURL:     f.cfg.Qwen.BaseURL,
		APIKey:      f.cfg.Qwen.APIKey,
		Model:       name,
		Temperature: &f.cfg.Temperature,
		MaxTokens:   &f.cfg.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Str("model", name).Msg("error creating qwen model")
		return nil, fmt.Errorf("error creating qwen model: %w", err)
	}
	return cm, nil
}

func (f *Factory) newGemini(ctx context.Context, name string) (einomodel.ToolCallingChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  f.cfg.Google.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if f.cfg.Google.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = f.cfg.Google.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       name,
		Temperature: &f.cfg.Temperature,
		MaxTokens:   &f.cfg.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Str("model", name).Msg("error creating Gemini model")
		return nil, fmt.Errorf("error creating Gemini model: %w", err)
	}
	return cm, nil
}
