// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package openai implements chat and embeddings against the OpenAI API and
// any OpenAI-compatible endpoint, including OpenRouter.
package openai

import (
	"context"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/aegis-hr/aegis/internal/provider"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// OpenRouterBaseURL is the OpenAI-compatible endpoint of OpenRouter.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// Config holds OpenAI provider configuration.
type Config struct {
	Name    string // registry name; defaults to "openai"
	APIKey  string
	BaseURL string // optional; OpenRouter or a self-hosted compatible server
}

// Provider implements provider.Provider and provider.Embedder using the
// OpenAI Chat Completions and Embeddings APIs.
type Provider struct {
	client openaisdk.Client
	config Config
	health *provider.HealthTracker
}

var (
	_ provider.Provider       = (*Provider)(nil)
	_ provider.Embedder       = (*Provider)(nil)
	_ provider.HealthReporter = (*Provider)(nil)
)

// New creates a new OpenAI provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.APIKey == "" {
		return nil, aegiserr.New(aegiserr.CodeProviderRequestInvalid,
			cfg.Name+": missing api_key in config", aegiserr.FieldProvider(cfg.Name))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	health, err := provider.NewHealthTracker(provider.DefaultHealthCooldown)
	if err != nil {
		return nil, err
	}

	return &Provider{
		client: openaisdk.NewClient(opts...),
		config: cfg,
		health: health,
	}, nil
}

// NewOpenRouter creates a provider registered as "openrouter".
func NewOpenRouter(apiKey, baseURL string) (*Provider, error) {
	if baseURL == "" {
		baseURL = OpenRouterBaseURL
	}
	return New(Config{Name: "openrouter", APIKey: apiKey, BaseURL: baseURL})
}

func (p *Provider) Name() string { return p.config.Name }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) RecordFailure() { p.health.RecordFailure() }
func (p *Provider) RecordSuccess() { p.health.RecordSuccess() }

func (p *Provider) HealthMetrics() provider.HealthMetrics { return p.health.HealthMetrics() }

// ListModels queries the models endpoint of the configured base URL.
func (p *Provider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	iter := p.client.Models.ListAutoPaging(ctx)

	var models []provider.ModelInfo
	for iter.Next() {
		m := iter.Current()
		models = append(models, provider.ModelInfo{
			ID:        m.ID,
			Name:      m.ID,
			Provider:  p.config.Name,
			Embedding: isEmbeddingModel(m.ID),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeProviderUpstreamFailure, "listing models",
			aegiserr.FieldProvider(p.config.Name))
	}
	return models, nil
}

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, aegiserr.Wrapf(err, aegiserr.CodeProviderRequestInvalid, "%s: building request params", p.config.Name)
	}

	eventCh := make(chan provider.ChatEvent, 100)

	go func() {
		defer close(eventCh)
		p.streamChat(ctx, params, eventCh)
	}()

	return eventCh, nil
}

// Embed returns one vector per input text, ordered by the response index.
func (p *Provider) Embed(ctx context.Context, req provider.EmbedRequest) ([][]float32, error) {
	if len(req.Texts) == 0 {
		return nil, nil
	}

	params := openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(req.Model),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: req.Texts,
		},
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	}
	if req.Dimensions > 0 {
		params.Dimensions = param.NewOpt(int64(req.Dimensions))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		if ctx.Err() == nil {
			p.health.RecordFailure()
		}
		return nil, aegiserr.Wrap(err, aegiserr.CodeProviderUpstreamFailure, "creating embeddings",
			aegiserr.FieldProvider(p.config.Name))
	}
	p.health.RecordSuccess()

	out := make([][]float32, len(req.Texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, aegiserr.Errorf(aegiserr.CodeProviderResponseInvalid,
				"%s: embedding index %d out of range", p.config.Name, d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float32(x)
		}
		out[d.Index] = v
	}
	return out, nil
}

func (p *Provider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{
		Available: p.Available(ctx),
		Provider:  p.config.Name,
		Message:   "ok",
	}, nil
}

func (p *Provider) Close() error { return nil }

// buildParams converts a provider.ChatRequest into OpenAI SDK ChatCompletionNewParams.
func buildParams(req provider.ChatRequest) (openaisdk.ChatCompletionNewParams, error) {
	msgs, err := convertMessages(req.Messages, req.SystemPrompt)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: msgs,
		StreamOptions: openaisdk.ChatCompletionStreamOptionsParam{
			IncludeUsage: param.NewOpt(true),
		},
	}

	if req.Options.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.Options.MaxTokens))
	}

	if req.Options.Temperature != nil {
		params.Temperature = param.NewOpt(float64(*req.Options.Temperature))
	}

	if len(req.Options.StopSequences) > 0 {
		params.Stop = openaisdk.ChatCompletionNewParamsStopUnion{
			OfStringArray: req.Options.StopSequences,
		}
	}

	return params, nil
}

// convertMessages transforms provider.Message slices into OpenAI SDK message param slices.
// The system prompt is prepended as a system message if present.
func convertMessages(msgs []provider.Message, systemPrompt string) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	var result []openaisdk.ChatCompletionMessageParamUnion

	if systemPrompt != "" {
		result = append(result, openaisdk.SystemMessage(systemPrompt))
	}

	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			result = append(result, openaisdk.UserMessage(msg.Content))
		case provider.MessageRoleAssistant:
			result = append(result, openaisdk.AssistantMessage(msg.Content))
		case provider.MessageRoleSystem:
			result = append(result, openaisdk.SystemMessage(msg.Content))
		default:
			return nil, aegiserr.Errorf(aegiserr.CodeProviderRequestInvalid, "openai: unsupported message role %q", msg.Role)
		}
	}

	return result, nil
}

// streamChat runs the streaming loop, converting SDK events into provider.ChatEvent values.
func (p *Provider) streamChat(ctx context.Context, params openaisdk.ChatCompletionNewParams, ch chan<- provider.ChatEvent) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		chunk := stream.Current()

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				ch <- provider.ChatEvent{
					Type: provider.EventTypeTextDelta,
					Text: choice.Delta.Content,
				}
			}
		}

		// Usage arrives on the final chunk when stream_options.include_usage is set.
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			ch <- provider.ChatEvent{
				Type: provider.EventTypeUsage,
				Usage: &provider.Usage{
					InputTokens:     int(chunk.Usage.PromptTokens),
					OutputTokens:    int(chunk.Usage.CompletionTokens),
					CacheReadTokens: int(chunk.Usage.PromptTokensDetails.CachedTokens),
				},
			}
		}
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() == nil {
			p.health.RecordFailure()
		}
		ch <- provider.ChatEvent{
			Type:  provider.EventTypeError,
			Error: err.Error(),
		}
		return
	}

	p.health.RecordSuccess()
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
}

func isEmbeddingModel(id string) bool {
	return strings.Contains(id, "embedding") || strings.Contains(id, "embed-")
}
