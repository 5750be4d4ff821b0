// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package provider

import (
	"context"
	"log/slog"
	"strings"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// GenerateRequest is a single-turn, non-interactive completion.
type GenerateRequest struct {
	Model   string // "provider/model"; empty selects the registry default
	System  string
	Prompt  string
	Options ChatOptions
}

// TextGenerator produces a complete response for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// TextEmbedder maps text onto fixed-dimension vectors.
type TextEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

var _ TextGenerator = (*Registry)(nil)

// Generate routes req and drains the response stream into a single string.
// A failed provider is excluded and the next candidate in the failover chain
// is tried, up to MaxAttempts. Cancellation of ctx is never retried.
func (r *Registry) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	var (
		tried   []string
		lastErr error
	)

	for attempt := 0; attempt < r.MaxAttempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return "", aegiserr.Wrap(err, aegiserr.CodeProviderUpstreamFailure, "generation interrupted")
		}

		p, model, err := r.Route(ctx, req.Model, tried)
		if err != nil {
			if lastErr != nil {
				return "", lastErr
			}
			return "", err
		}
		tried = append(tried, p.Name())

		text, err := complete(ctx, p, model, req)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", err
		}

		lastErr = err
		slog.Warn("provider call failed",
			"provider", p.Name(),
			"model", model,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return "", lastErr
}

func complete(ctx context.Context, p Provider, model string, req GenerateRequest) (string, error) {
	events, err := p.Chat(ctx, ChatRequest{
		Model:        model,
		SystemPrompt: req.System,
		Messages:     []Message{{Role: MessageRoleUser, Content: req.Prompt}},
		Options:      req.Options,
	})
	if err != nil {
		return "", aegiserr.Wrap(err, aegiserr.CodeProviderRequestInvalid, "starting chat",
			aegiserr.FieldProvider(p.Name()))
	}

	text, _, err := Collect(ctx, events)
	if err != nil {
		return "", aegiserr.With(err, aegiserr.FieldProvider(p.Name()))
	}
	return text, nil
}

// Collect drains a chat event stream, concatenating text deltas. It returns
// the last usage event seen and fails on the first error event. The channel
// is drained in the background if ctx ends first so the producer never
// blocks.
func Collect(ctx context.Context, events <-chan ChatEvent) (string, *Usage, error) {
	var (
		b     strings.Builder
		usage *Usage
	)

	for {
		select {
		case <-ctx.Done():
			go func() {
				for range events {
				}
			}()
			return "", nil, aegiserr.Wrap(ctx.Err(), aegiserr.CodeProviderUpstreamFailure, "waiting for response")
		case ev, ok := <-events:
			if !ok {
				return b.String(), usage, nil
			}
			switch ev.Type {
			case EventTypeTextDelta:
				b.WriteString(ev.Text)
			case EventTypeUsage:
				usage = ev.Usage
			case EventTypeError:
				go func() {
					for range events {
					}
				}()
				return "", usage, aegiserr.New(aegiserr.CodeProviderUpstreamFailure, ev.Error)
			case EventTypeDone:
				return b.String(), usage, nil
			}
		}
	}
}

// EmbeddingService sends embedding calls to a single "provider/model" ref.
// Embeddings never fail over: vectors from different models are not
// comparable within one store.
type EmbeddingService struct {
	embedder  Embedder
	provider  string
	model     string
	dims      int
	batchSize int
}

var _ TextEmbedder = (*EmbeddingService)(nil)

// NewEmbeddingService resolves ref against reg. The provider must implement
// Embedder.
func NewEmbeddingService(reg *Registry, ref string, dims, batchSize int) (*EmbeddingService, error) {
	if dims <= 0 {
		return nil, aegiserr.Errorf(aegiserr.CodeConfigValidateInvalidValue,
			"embedding dimensions must be positive, got %d", dims)
	}
	if batchSize <= 0 {
		batchSize = 32
	}

	provName, model := parseRef(ref)
	if model == "" {
		return nil, aegiserr.Errorf(aegiserr.CodeProviderInvalidModelRef,
			"embedding model %q must use provider/model format", ref)
	}

	p, err := reg.Get(provName)
	if err != nil {
		return nil, err
	}

	e, ok := p.(Embedder)
	if !ok {
		return nil, aegiserr.New(aegiserr.CodeProviderEmbedUnsupported,
			"provider does not support embeddings: "+provName,
			aegiserr.FieldProvider(provName))
	}

	return &EmbeddingService{
		embedder:  e,
		provider:  provName,
		model:     model,
		dims:      dims,
		batchSize: batchSize,
	}, nil
}

func (s *EmbeddingService) Dimensions() int { return s.dims }

// EmbedDocuments embeds texts in batches, preserving order.
func (s *EmbeddingService) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		vecs, err := s.embed(ctx, texts[start:end], EmbedTaskDocument)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.embed(ctx, []string{text}, EmbedTaskQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *EmbeddingService) embed(ctx context.Context, texts []string, task EmbedTask) ([][]float32, error) {
	vecs, err := s.embedder.Embed(ctx, EmbedRequest{
		Model:      s.model,
		Texts:      texts,
		Dimensions: s.dims,
		Task:       task,
	})
	if err != nil {
		return nil, err
	}

	if len(vecs) != len(texts) {
		return nil, aegiserr.Errorf(aegiserr.CodeProviderResponseInvalid,
			"%s returned %d embeddings for %d inputs", s.provider, len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) != s.dims {
			return nil, aegiserr.Errorf(aegiserr.CodeProviderResponseInvalid,
				"%s embedding %d has %d dimensions, want %d", s.provider, i, len(v), s.dims)
		}
	}
	return vecs, nil
}
