// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package anthropic implements chat on the Anthropic Messages API. Anthropic
// offers no embeddings endpoint, so it can serve generation and failover but
// never the ingestion store.
package anthropic

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aegis-hr/aegis/internal/provider"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

const defaultMaxTokens = 4096

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Provider implements provider.Provider using the Anthropic Messages API.
type Provider struct {
	client anthropicsdk.Client
	config Config
	health *provider.HealthTracker
}

var (
	_ provider.Provider       = (*Provider)(nil)
	_ provider.HealthReporter = (*Provider)(nil)
)

// New creates a new Anthropic provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, aegiserr.New(aegiserr.CodeProviderRequestInvalid,
			"anthropic: missing api_key in config", aegiserr.FieldProvider("anthropic"))
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
		client: anthropicsdk.NewClient(opts...),
		config: cfg,
		health: health,
	}, nil
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) RecordFailure() { p.health.RecordFailure() }
func (p *Provider) RecordSuccess() { p.health.RecordSuccess() }

func (p *Provider) HealthMetrics() provider.HealthMetrics { return p.health.HealthMetrics() }

func (p *Provider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	pager := p.client.Models.ListAutoPaging(ctx, anthropicsdk.ModelListParams{})

	var models []provider.ModelInfo
	for pager.Next() {
		m := pager.Current()
		models = append(models, provider.ModelInfo{
			ID:       m.ID,
			Name:     m.DisplayName,
			Provider: "anthropic",
		})
	}
	if err := pager.Err(); err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeProviderUpstreamFailure, "listing models",
			aegiserr.FieldProvider("anthropic"))
	}
	return models, nil
}

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, aegiserr.Wrapf(err, aegiserr.CodeProviderRequestInvalid, "anthropic: building request params")
	}

	eventCh := make(chan provider.ChatEvent, 100)

	go func() {
		defer close(eventCh)
		p.streamChat(ctx, params, eventCh)
	}()

	return eventCh, nil
}

func (p *Provider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{
		Available: p.Available(ctx),
		Provider:  "anthropic",
		Message:   "ok",
	}, nil
}

func (p *Provider) Close() error { return nil }

// buildParams maps a chat request onto MessageNewParams. System messages in
// the history join SystemPrompt in the top-level system blocks.
func buildParams(req provider.ChatRequest) (anthropicsdk.MessageNewParams, error) {
	msgs, system, err := convertMessages(req.Messages)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}

	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:         anthropicsdk.Model(req.Model),
		Messages:      msgs,
		MaxTokens:     maxTokens,
		StopSequences: req.Options.StopSequences,
	}
	if req.SystemPrompt != "" {
		params.System = append(params.System, anthropicsdk.TextBlockParam{Text: req.SystemPrompt})
	}
	for _, text := range system {
		params.System = append(params.System, anthropicsdk.TextBlockParam{Text: text})
	}
	if req.Options.Temperature != nil {
		params.Temperature = anthropicsdk.Float(float64(*req.Options.Temperature))
	}
	return params, nil
}

// convertMessages returns the conversation turns and, separately, the text of
// any system messages. The Messages API requires user and assistant turns to
// alternate, so consecutive messages with the same role become one turn with
// several text blocks.
func convertMessages(msgs []provider.Message) ([]anthropicsdk.MessageParam, []string, error) {
	var (
		turns  []anthropicsdk.MessageParam
		system []string
	)
	for _, msg := range msgs {
		var role anthropicsdk.MessageParamRole
		switch msg.Role {
		case provider.MessageRoleUser:
			role = anthropicsdk.MessageParamRoleUser
		case provider.MessageRoleAssistant:
			role = anthropicsdk.MessageParamRoleAssistant
		case provider.MessageRoleSystem:
			system = append(system, msg.Content)
			continue
		default:
			return nil, nil, aegiserr.Errorf(aegiserr.CodeProviderRequestInvalid, "anthropic: unsupported message role %q", msg.Role)
		}

		block := anthropicsdk.NewTextBlock(msg.Content)
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Content = append(turns[n-1].Content, block)
			continue
		}
		turns = append(turns, anthropicsdk.MessageParam{
			Role:    role,
			Content: []anthropicsdk.ContentBlockParamUnion{block},
		})
	}
	return turns, system, nil
}

// streamChat forwards text deltas as they arrive and reports usage once, at
// the end: input tokens come with message_start and the output count with
// message_delta.
func (p *Provider) streamChat(ctx context.Context, params anthropicsdk.MessageNewParams, ch chan<- provider.ChatEvent) {
	stream := p.client.Messages.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	var usage provider.Usage
	send := func(ev provider.ChatEvent) bool {
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			u := event.Message.Usage
			usage.InputTokens = int(u.InputTokens)
			usage.CacheReadTokens = int(u.CacheReadInputTokens)
			usage.OutputTokens = int(u.OutputTokens)
		case "content_block_delta":
			if event.Delta.Type == "text_delta" && !send(provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: event.Delta.Text}) {
				return
			}
		case "message_delta":
			usage.OutputTokens = int(event.Usage.OutputTokens)
		}
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() == nil {
			p.health.RecordFailure()
		}
		send(provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()})
		return
	}

	p.health.RecordSuccess()
	if send(provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &usage}) {
		send(provider.ChatEvent{Type: provider.EventTypeDone})
	}
}
