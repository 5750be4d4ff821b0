// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
	"github.com/aegis-hr/aegis/pkg/health"
)

// User-facing messages.
const (
	msgAgentNotReady  = "AI Agent is not initialized yet. Please wait a moment."
	msgIngestNotReady = "Document ingestion is not initialized yet. Please wait a moment."
	msgTimeout        = "The request took too long to process. Please try again."
	msgEmptyMessage   = "Message must not be empty."
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message   string `json:"message,omitempty" doc:"The user's message" example:"How many vacation days do I get?"`
	SessionID string `json:"session_id,omitempty" doc:"Conversation to continue; a new one is started when empty"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Response  string `json:"response" doc:"The assistant's answer"`
	SessionID string `json:"session_id" doc:"Conversation the answer belongs to"`
}

type chatInput struct {
	Body ChatRequest
}

type chatOutput struct {
	Body ChatResponse
}

type documentsOutput struct {
	Body struct {
		Documents []string `json:"documents" doc:"Indexed document names, sorted"`
	}
}

type healthOutput struct {
	Body health.Report
}

type sessionInput struct {
	ID string `path:"id" doc:"Session id"`
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/chat",
		Summary:     "Send a message to the HR assistant",
		Tags:        []string{"chat"},
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
	}, s.handleChat)

	huma.Register(s.api, huma.Operation{
		OperationID:   "clear-session",
		Method:        http.MethodDelete,
		Path:          "/sessions/{id}",
		Summary:       "Forget a conversation",
		Tags:          []string{"chat"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusInternalServerError, http.StatusServiceUnavailable},
	}, s.handleClearSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/documents",
		Summary:     "List indexed documents",
		Tags:        []string{"documents"},
		Errors:      []int{http.StatusInternalServerError, http.StatusServiceUnavailable},
	}, s.handleListDocuments)

	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, s.handleHealth)
}

func (s *Server) handleChat(ctx context.Context, input *chatInput) (*chatOutput, error) {
	chat := s.svc().Chat
	if chat == nil {
		return nil, huma.Error503ServiceUnavailable(msgAgentNotReady)
	}
	if strings.TrimSpace(input.Body.Message) == "" {
		return nil, huma.Error400BadRequest(msgEmptyMessage)
	}

	sessionID := strings.TrimSpace(input.Body.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	turn, err := chat.Act(ctx, sessionID, input.Body.Message)
	if err != nil {
		return nil, s.agentError(sessionID, err)
	}

	out := &chatOutput{}
	out.Body.Response = turn.FinalAnswer
	out.Body.SessionID = sessionID
	return out, nil
}

func (s *Server) handleClearSession(ctx context.Context, input *sessionInput) (*struct{}, error) {
	chat := s.svc().Chat
	if chat == nil {
		return nil, huma.Error503ServiceUnavailable(msgAgentNotReady)
	}
	if err := chat.ClearSession(ctx, input.ID); err != nil {
		s.logger.Error("clearing session failed", "session_id", input.ID, "error", err)
		return nil, huma.Error500InternalServerError("Could not clear the conversation.")
	}
	return nil, nil
}

func (s *Server) handleListDocuments(ctx context.Context, _ *struct{}) (*documentsOutput, error) {
	docs := s.svc().Documents
	if docs == nil {
		return nil, huma.Error503ServiceUnavailable(msgIngestNotReady)
	}
	names, err := docs.ListDocuments(ctx)
	if err != nil {
		s.logger.Error("listing documents failed", "error", err)
		return nil, huma.Error500InternalServerError("Could not list documents.")
	}

	out := &documentsOutput{}
	out.Body.Documents = append([]string{}, names...)
	return out, nil
}

func (s *Server) handleHealth(ctx context.Context, _ *struct{}) (*healthOutput, error) {
	svc := s.svc()
	report := health.Report{
		Status:     "ok",
		Ready:      svc.Chat != nil && svc.Documents != nil,
		Providers:  map[string]health.Metrics{},
		CheckedAt:  time.Now().UTC(),
		Components: map[string]string{"agent": "starting", "ingest": "starting"},
	}
	if svc.Chat != nil {
		report.Components["agent"] = "ready"
	}
	if svc.Documents != nil {
		report.Components["ingest"] = "ready"
		if names, err := svc.Documents.ListDocuments(ctx); err == nil {
			report.Documents = len(names)
		} else {
			report.Components["ingest"] = "error"
			s.logger.Warn("health: listing documents failed", "error", err)
		}
	}
	if svc.Providers != nil {
		for name, m := range svc.Providers.Health(ctx) {
			report.Providers[name] = m
		}
	}

	switch {
	case !report.Ready:
		report.Status = "starting"
	case report.Degraded() || report.Components["ingest"] == "error":
		report.Status = "degraded"
	}
	return &healthOutput{Body: report}, nil
}

// agentError maps a failed turn onto an HTTP error and logs it.
func (s *Server) agentError(sessionID string, err error) error {
	status := aegiserr.HTTPStatus(err)
	attrs := []any{
		"session_id", sessionID,
		"kind", aegiserr.Kind(err),
		"code", aegiserr.CodeOf(err),
		"error", err,
	}

	switch status {
	case http.StatusBadRequest:
		s.logger.Info("chat request rejected", attrs...)
		return huma.Error400BadRequest(publicMessage(err))
	case http.StatusServiceUnavailable:
		s.logger.Warn("chat unavailable", attrs...)
		return huma.Error503ServiceUnavailable(msgAgentNotReady)
	case http.StatusGatewayTimeout:
		s.logger.Warn("chat timed out", attrs...)
		return huma.Error504GatewayTimeout(msgTimeout)
	default:
		s.logger.Error("chat failed", attrs...)
		return huma.Error500InternalServerError("An error occurred in the agent: " + publicMessage(err))
	}
}

// publicMessage is the outermost error message without wrapped causes.
func publicMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i > 0 && aegiserr.CodeOf(err) != "" {
		msg = msg[:i]
	}
	return msg
}
