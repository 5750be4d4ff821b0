// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package provider

import (
	"context"
)

// Provider is the core interface for LLM providers.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	ListModels(ctx context.Context) ([]ModelInfo, error)
	Chat(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
	Status(ctx context.Context) (ProviderStatus, error)
	Close() error
}

// Embedder is implemented by providers that can produce text embeddings.
type Embedder interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, error)
}

// HealthReporter is implemented by providers that track their own health.
type HealthReporter interface {
	RecordFailure()
	RecordSuccess()
	HealthMetrics() HealthMetrics
}

// ChatRequest represents a request to the LLM.
type ChatRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	Options      ChatOptions
}

// ChatOptions contains model configuration.
type ChatOptions struct {
	Temperature   *float32
	MaxTokens     int
	StopSequences []string
}

// Message represents a conversation message.
type Message struct {
	Role    MessageRole
	Content string
}

// MessageRole defines the role of a message sender.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// EmbedTask hints the provider about how a vector will be used.
type EmbedTask string

const (
	EmbedTaskDocument EmbedTask = "RETRIEVAL_DOCUMENT"
	EmbedTaskQuery    EmbedTask = "RETRIEVAL_QUERY"
)

// EmbedRequest asks for one vector per input text, in order.
type EmbedRequest struct {
	Model      string
	Texts      []string
	Dimensions int
	Task       EmbedTask
}

// ChatEvent is a streaming response event.
type ChatEvent struct {
	Type  EventType
	Text  string
	Usage *Usage
	Error string
}

// EventType defines the type of chat event.
type EventType string

const (
	EventTypeTextDelta EventType = "text_delta"
	EventTypeUsage     EventType = "usage"
	EventTypeDone      EventType = "done"
	EventTypeError     EventType = "error"
)

// Usage tracks token consumption.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	CacheReadTokens int
}

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Provider         string `json:"provider"`
	Embedding        bool   `json:"embedding"`
	MaxContextTokens int    `json:"max_context_tokens,omitempty"`
	MaxOutputTokens  int    `json:"max_output_tokens,omitempty"`
}

// ProviderStatus indicates provider health.
type ProviderStatus struct {
	Available bool
	Provider  string
	Message   string
}
