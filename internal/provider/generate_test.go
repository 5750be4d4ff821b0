// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package provider_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aegis-hr/aegis/internal/provider"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_UsesDefaultAndPassesOptions(t *testing.T) {
	google := newMockProvider("google", true, mockReply{text: "Final Answer: hi"})
	reg := provider.NewRegistry()
	reg.Register("google", google)
	require.NoError(t, reg.SetDefault("google/gemini-2.5-flash"))

	temp := float32(0.3)
	out, err := reg.Generate(context.Background(), provider.GenerateRequest{
		System: "be brief",
		Prompt: "hello",
		Options: provider.ChatOptions{
			Temperature:   &temp,
			StopSequences: []string{"\nObservation:"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Final Answer: hi", out)

	calls := google.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "gemini-2.5-flash", calls[0].Model)
	assert.Equal(t, "be brief", calls[0].SystemPrompt)
	require.Len(t, calls[0].Messages, 1)
	assert.Equal(t, provider.MessageRoleUser, calls[0].Messages[0].Role)
	assert.Equal(t, "hello", calls[0].Messages[0].Content)
	assert.Equal(t, []string{"\nObservation:"}, calls[0].Options.StopSequences)
}

func TestGenerate_FailsOverOnStreamError(t *testing.T) {
	google := newMockProvider("google", true, mockReply{err: "quota exceeded"})
	openai := newMockProvider("openai", true, mockReply{text: "from openai"})
	reg := provider.NewRegistry()
	reg.Register("google", google)
	reg.Register("openai", openai)
	require.NoError(t, reg.SetDefault("google/gemini-2.5-flash"))
	require.NoError(t, reg.SetFailover([]string{"openai/gpt-4.1-mini"}))

	out, err := reg.Generate(context.Background(), provider.GenerateRequest{Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "from openai", out)
	assert.Len(t, google.calls(), 1)
	assert.Len(t, openai.calls(), 1)
}

func TestGenerate_ReturnsLastErrorWhenExhausted(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register("google", newMockProvider("google", true, mockReply{err: "boom"}))
	require.NoError(t, reg.SetDefault("google/gemini-2.5-flash"))

	_, err := reg.Generate(context.Background(), provider.GenerateRequest{Prompt: "q"})
	require.Error(t, err)
	assert.True(t, aegiserr.IsUpstreamFailure(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestGenerate_CancelledContext(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register("google", newMockProvider("google", true))
	require.NoError(t, reg.SetDefault("google/gemini-2.5-flash"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := reg.Generate(ctx, provider.GenerateRequest{Prompt: "q"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollect(t *testing.T) {
	ch := make(chan provider.ChatEvent, 4)
	ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: "Thought: "}
	ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: "done"}
	ch <- provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &provider.Usage{OutputTokens: 2}}
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
	close(ch)

	text, usage, err := provider.Collect(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, "Thought: done", text)
	require.NotNil(t, usage)
	assert.Equal(t, 2, usage.OutputTokens)
}

func newEmbeddingRegistry(dims int) (*provider.Registry, *mockEmbedder) {
	e := &mockEmbedder{mockProvider: newMockProvider("google", true), dims: dims}
	reg := provider.NewRegistry()
	reg.Register("google", e)
	reg.Register("plain", newMockProvider("plain", true))
	return reg, e
}

func TestEmbeddingService_Batches(t *testing.T) {
	reg, e := newEmbeddingRegistry(4)
	svc, err := provider.NewEmbeddingService(reg, "google/text-embedding-004", 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, svc.Dimensions())

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := svc.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, v := range vecs {
		assert.Equal(t, float32(len(texts[i])), v[0], "order preserved")
	}
	assert.Len(t, e.batches, 3)
	assert.Equal(t, provider.EmbedTaskDocument, e.tasks[0])

	q, err := svc.EmbedQuery(context.Background(), strings.Repeat("x", 7))
	require.NoError(t, err)
	assert.Equal(t, float32(7), q[0])
	assert.Equal(t, provider.EmbedTaskQuery, e.tasks[len(e.tasks)-1])
}

func TestEmbeddingService_Errors(t *testing.T) {
	reg, _ := newEmbeddingRegistry(4)

	tests := []struct {
		name     string
		ref      string
		dims     int
		wantCode aegiserr.Code
	}{
		{name: "unsupported provider", ref: "plain/m", dims: 4, wantCode: aegiserr.CodeProviderEmbedUnsupported},
		{name: "unknown provider", ref: "cohere/embed", dims: 4, wantCode: aegiserr.CodeProviderNotFound},
		{name: "bare ref", ref: "google", dims: 4, wantCode: aegiserr.CodeProviderInvalidModelRef},
		{name: "zero dims", ref: "google/m", dims: 0, wantCode: aegiserr.CodeConfigValidateInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := provider.NewEmbeddingService(reg, tt.ref, tt.dims, 8)
			require.Error(t, err)
			assert.True(t, aegiserr.HasCode(err, tt.wantCode), "got %s", aegiserr.CodeOf(err))
		})
	}
}

func TestEmbeddingService_DimensionMismatch(t *testing.T) {
	reg, _ := newEmbeddingRegistry(3)
	svc, err := provider.NewEmbeddingService(reg, "google/text-embedding-004", 768, 8)
	require.NoError(t, err)

	_, err = svc.EmbedDocuments(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.True(t, aegiserr.HasCode(err, aegiserr.CodeProviderResponseInvalid))
}
