// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package server

import (
	"context"

	"github.com/aegis-hr/aegis/internal/agent"
	"github.com/aegis-hr/aegis/internal/ingest"
	"github.com/aegis-hr/aegis/internal/provider"
	"github.com/aegis-hr/aegis/pkg/health"
)

// ChatService answers chat messages. *agent.Orchestrator implements it.
type ChatService interface {
	Act(ctx context.Context, sessionID, message string) (agent.Turn, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// DocumentService indexes and lists documents. *ingest.Manager implements it.
type DocumentService interface {
	AddDocument(ctx context.Context, raw []byte, filename string) (ingest.IngestReport, error)
	ListDocuments(ctx context.Context) ([]string, error)
}

// ProviderService reports provider health. *provider.Registry implements it.
type ProviderService interface {
	Health(ctx context.Context) map[string]health.Metrics
}

// Services holds the dependencies behind the routes. A nil field means the
// component is still starting; its routes answer 503 until it is set.
type Services struct {
	Chat      ChatService
	Documents DocumentService
	Providers ProviderService
}

var (
	_ ChatService     = (*agent.Orchestrator)(nil)
	_ DocumentService = (*ingest.Manager)(nil)
	_ ProviderService = (*provider.Registry)(nil)
)
