// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package google implements chat and embeddings on the Gemini API.
package google

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/aegis-hr/aegis/internal/provider"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// Config holds Google provider configuration.
type Config struct {
	APIKey string
}

// Provider implements provider.Provider and provider.Embedder using the
// Google Gemini API.
type Provider struct {
	client *genai.Client
	config Config
	health *provider.HealthTracker
}

var (
	_ provider.Provider       = (*Provider)(nil)
	_ provider.Embedder       = (*Provider)(nil)
	_ provider.HealthReporter = (*Provider)(nil)
)

// New creates a new Google provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, aegiserr.New(aegiserr.CodeProviderRequestInvalid, "google: missing api_key in config", aegiserr.FieldProvider("google"))
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, aegiserr.Wrapf(err, aegiserr.CodeProviderUpstreamFailure, "google: creating client")
	}

	health, err := provider.NewHealthTracker(provider.DefaultHealthCooldown)
	if err != nil {
		return nil, aegiserr.Wrapf(err, aegiserr.CodeProviderRequestInvalid, "google: creating health tracker")
	}

	return &Provider{
		client: client,
		config: cfg,
		health: health,
	}, nil
}

func (p *Provider) Name() string { return "google" }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) RecordFailure() { p.health.RecordFailure() }
func (p *Provider) RecordSuccess() { p.health.RecordSuccess() }

func (p *Provider) HealthMetrics() provider.HealthMetrics { return p.health.HealthMetrics() }

// knownModels is served when the models endpoint cannot be reached.
func knownModels() []provider.ModelInfo {
	return []provider.ModelInfo{
		{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: "google", MaxContextTokens: 1048576, MaxOutputTokens: 65536},
		{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: "google", MaxContextTokens: 1048576, MaxOutputTokens: 65536},
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: "google", MaxContextTokens: 1048576, MaxOutputTokens: 8192},
		{ID: "text-embedding-004", Name: "Text Embedding 004", Provider: "google", Embedding: true},
		{ID: "gemini-embedding-001", Name: "Gemini Embedding 001", Provider: "google", Embedding: true},
	}
}

// ListModels queries the models endpoint, falling back to the built-in
// catalogue if the call fails.
func (p *Provider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	var models []provider.ModelInfo
	for m, err := range p.client.Models.All(ctx) {
		if err != nil {
			return knownModels(), nil
		}
		models = append(models, modelInfo(m))
	}
	if len(models) == 0 {
		return knownModels(), nil
	}
	return models, nil
}

func modelInfo(m *genai.Model) provider.ModelInfo {
	info := provider.ModelInfo{
		ID:               strings.TrimPrefix(m.Name, "models/"),
		Name:             m.DisplayName,
		Provider:         "google",
		MaxContextTokens: int(m.InputTokenLimit),
		MaxOutputTokens:  int(m.OutputTokenLimit),
	}
	for _, action := range m.SupportedActions {
		if action == "embedContent" {
			info.Embedding = true
		}
	}
	return info
}

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, aegiserr.Wrapf(err, aegiserr.CodeProviderRequestInvalid, "google: converting messages")
	}

	config := buildConfig(req)

	eventCh := make(chan provider.ChatEvent, 100)

	go func() {
		defer close(eventCh)
		p.streamChat(ctx, req.Model, contents, config, eventCh)
	}()

	return eventCh, nil
}

// Embed returns one vector per text. Gemini accepts a batch of contents in a
// single call and returns embeddings in input order.
func (p *Provider) Embed(ctx context.Context, req provider.EmbedRequest) ([][]float32, error) {
	if len(req.Texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(req.Texts))
	for _, text := range req.Texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	cfg := &genai.EmbedContentConfig{TaskType: string(req.Task)}
	if req.Dimensions > 0 {
		dims := int32(req.Dimensions)
		cfg.OutputDimensionality = &dims
	}

	result, err := p.client.Models.EmbedContent(ctx, req.Model, contents, cfg)
	if err != nil {
		p.health.RecordFailure()
		return nil, aegiserr.Wrap(err, aegiserr.CodeProviderUpstreamFailure, "google: embedding content",
			aegiserr.FieldProvider("google"))
	}
	p.health.RecordSuccess()

	out := make([][]float32, 0, len(result.Embeddings))
	for _, e := range result.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}

func (p *Provider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{
		Available: p.Available(ctx),
		Provider:  "google",
		Message:   "ok",
	}, nil
}

func (p *Provider) Close() error { return nil }

// buildConfig converts a provider.ChatRequest into a genai.GenerateContentConfig.
func buildConfig(req provider.ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if req.Options.Temperature != nil {
		cfg.Temperature = genai.Ptr(*req.Options.Temperature)
	}

	if req.Options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	}

	if len(req.Options.StopSequences) > 0 {
		cfg.StopSequences = req.Options.StopSequences
	}

	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: req.SystemPrompt},
			},
		}
	}

	return cfg
}

// convertMessages maps provider messages onto genai contents. Gemini names
// the assistant role "model"; system messages travel in SystemInstruction.
func convertMessages(msgs []provider.Message) ([]*genai.Content, error) {
	var result []*genai.Content

	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			result = append(result, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case provider.MessageRoleAssistant:
			result = append(result, genai.NewContentFromText(msg.Content, genai.RoleModel))
		case provider.MessageRoleSystem:
			continue
		default:
			return nil, aegiserr.Errorf(aegiserr.CodeProviderRequestInvalid, "google: unsupported message role %q", msg.Role)
		}
	}

	return result, nil
}

// streamChat runs the streaming loop, converting SDK responses into provider.ChatEvent values.
func (p *Provider) streamChat(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	ch chan<- provider.ChatEvent,
) {
	for result, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			if ctx.Err() == nil {
				p.health.RecordFailure()
			}
			ch <- provider.ChatEvent{
				Type:  provider.EventTypeError,
				Error: err.Error(),
			}
			return
		}

		for _, candidate := range result.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" && !part.Thought {
					ch <- provider.ChatEvent{
						Type: provider.EventTypeTextDelta,
						Text: part.Text,
					}
				}
			}
		}

		if result.UsageMetadata != nil {
			ch <- provider.ChatEvent{
				Type: provider.EventTypeUsage,
				Usage: &provider.Usage{
					InputTokens:     int(result.UsageMetadata.PromptTokenCount),
					OutputTokens:    int(result.UsageMetadata.CandidatesTokenCount),
					CacheReadTokens: int(result.UsageMetadata.CachedContentTokenCount),
				},
			}
		}
	}

	p.health.RecordSuccess()
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
}
