// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-hr/aegis/internal/server"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
	"github.com/aegis-hr/aegis/pkg/health"
)

// fakeAPI records requests and answers like a running server.
type fakeAPI struct {
	mu       sync.Mutex
	chats    []server.ChatRequest
	deleted  []string
	uploads  map[string]string
	docs     []string
	chatFail bool
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, health.Report{
			Status:     "ok",
			Ready:      true,
			Documents:  len(f.docs),
			Components: map[string]string{"agent": "ready", "ingest": "ready"},
			Providers: map[string]health.Metrics{
				"google": {Available: true},
				"openai": {Available: false, FailureCount: 3},
			},
			CheckedAt: time.Now(),
		})
	})

	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		var req server.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.chats = append(f.chats, req)
		n := len(f.chats)
		f.mu.Unlock()

		if f.chatFail {
			writeJSON(w, http.StatusGatewayTimeout, problem{
				Title: "Gateway Timeout", Status: http.StatusGatewayTimeout,
				Detail: "Processing timed out. Please try a simpler question.",
			})
			return
		}
		session := req.SessionID
		if session == "" {
			session = "sess-1"
		}
		writeJSON(w, http.StatusOK, server.ChatResponse{
			Response:  "answer " + strings.Repeat("!", n),
			SessionID: session,
		})
	})

	mux.HandleFunc("DELETE /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, r.PathValue("id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /documents", func(w http.ResponseWriter, _ *http.Request) {
		docs := f.docs
		if docs == nil {
			docs = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
	})

	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		file, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		content, err := io.ReadAll(file)
		require.NoError(t, err)

		if !strings.HasSuffix(hdr.Filename, ".pdf") {
			writeJSON(w, http.StatusBadRequest, problem{
				Title: "Bad Request", Status: http.StatusBadRequest,
				Detail: "Invalid file type. Only PDF files are allowed.",
			})
			return
		}
		f.mu.Lock()
		if f.uploads == nil {
			f.uploads = map[string]string{}
		}
		f.uploads[hdr.Filename] = string(content)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, server.UploadResponse{
			Message:  "Successfully added '" + hdr.Filename + "' to the knowledge base.",
			Filename: hdr.Filename,
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func startFakeAPI(t *testing.T, f *fakeAPI) string {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return addrOf(srv)
}

func TestStatusCommand_Running(t *testing.T) {
	isolateCLI(t, nil)
	addr := startFakeAPI(t, &fakeAPI{docs: []string{"a.pdf", "b.pdf"}})

	out, _, err := runCLI(t, nil, "status", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Server at "+addr+": ok (2 documents)")
	assert.Contains(t, out, "agent")
	assert.Contains(t, out, "provider google")
	assert.Contains(t, out, "cooling down (3 failures)")
}

func TestStatusCommand_NotRunning(t *testing.T) {
	isolateCLI(t, nil)

	out, _, err := runCLI(t, nil, "status", "--address", "127.0.0.1:1")
	require.NoError(t, err)
	assert.Contains(t, out, "not running")
}

func TestChatCommand_OneShot(t *testing.T) {
	isolateCLI(t, nil)
	f := &fakeAPI{}
	addr := startFakeAPI(t, f)

	out, errOut, err := runCLI(t, nil, "chat", "--address", addr, "What is the PTO policy?")
	require.NoError(t, err)
	assert.Equal(t, "Aegis: answer !\n", out)
	assert.Contains(t, errOut, "session: sess-1")

	require.Len(t, f.chats, 1)
	assert.Equal(t, "What is the PTO policy?", f.chats[0].Message)
	assert.Empty(t, f.chats[0].SessionID)
}

func TestChatCommand_SessionFlag(t *testing.T) {
	isolateCLI(t, nil)
	f := &fakeAPI{}
	addr := startFakeAPI(t, f)

	_, errOut, err := runCLI(t, nil, "chat", "--address", addr, "-s", "existing", "hello")
	require.NoError(t, err)
	assert.Contains(t, errOut, "session: existing")
	require.Len(t, f.chats, 1)
	assert.Equal(t, "existing", f.chats[0].SessionID)
}

func TestChatCommand_ServerErrorDetail(t *testing.T) {
	isolateCLI(t, nil)
	addr := startFakeAPI(t, &fakeAPI{chatFail: true})

	_, _, err := runCLI(t, nil, "chat", "--address", addr, "hello")
	require.Error(t, err)
	assert.True(t, aegiserr.HasCode(err, aegiserr.CodeCLIRequestFailure))
	assert.Contains(t, err.Error(), "504")
	assert.Contains(t, err.Error(), "Processing timed out")
}

func TestChatCommand_NotRunning(t *testing.T) {
	isolateCLI(t, nil)

	_, _, err := runCLI(t, nil, "chat", "--address", "127.0.0.1:1", "hello")
	require.Error(t, err)
	assert.True(t, aegiserr.HasCode(err, aegiserr.CodeCLIServerNotRunning))
}

func TestChatCommand_Interactive(t *testing.T) {
	isolateCLI(t, nil)
	f := &fakeAPI{}
	addr := startFakeAPI(t, f)

	in := strings.NewReader("first question\n\nsecond question\n/reset\nthird question\n/exit\nignored\n")
	out, _, err := runCLI(t, in, "chat", "--address", addr)
	require.NoError(t, err)

	assert.Contains(t, out, "Aegis: answer !\n")
	assert.Contains(t, out, "Aegis: answer !!\n")
	assert.Contains(t, out, "Conversation cleared.")
	assert.Contains(t, out, "Aegis: answer !!!\n")
	assert.NotContains(t, out, "!!!!")

	require.Len(t, f.chats, 3)
	assert.Empty(t, f.chats[0].SessionID)
	assert.Equal(t, "sess-1", f.chats[1].SessionID, "the session carries over between turns")
	assert.Empty(t, f.chats[2].SessionID, "reset starts a new session")
	assert.Equal(t, []string{"sess-1"}, f.deleted)
}

func TestChatCommand_InteractiveKeepsGoingOnError(t *testing.T) {
	isolateCLI(t, nil)
	addr := startFakeAPI(t, &fakeAPI{chatFail: true})

	out, _, err := runCLI(t, strings.NewReader("hello\n"), "chat", "--address", addr)
	require.NoError(t, err, "EOF ends the session cleanly")
	assert.Contains(t, out, "error: ")
	assert.Contains(t, out, "Processing timed out")
}

func TestSessionClearCommand(t *testing.T) {
	isolateCLI(t, nil)
	f := &fakeAPI{}
	addr := startFakeAPI(t, f)

	out, _, err := runCLI(t, nil, "session", "clear", "abc-123", "--address", addr)
	require.NoError(t, err)
	assert.Equal(t, "Cleared session abc-123\n", out)
	assert.Equal(t, []string{"abc-123"}, f.deleted)
}

func TestDocumentsCommand(t *testing.T) {
	tests := []struct {
		name string
		docs []string
		want string
	}{
		{name: "empty index", want: "No documents indexed.\n"},
		{name: "lists names", docs: []string{"handbook.pdf", "resume.pdf"}, want: "handbook.pdf\nresume.pdf\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateCLI(t, nil)
			addr := startFakeAPI(t, &fakeAPI{docs: tt.docs})

			out, _, err := runCLI(t, nil, "documents", "--address", addr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestUploadCommand(t *testing.T) {
	isolateCLI(t, nil)
	f := &fakeAPI{}
	addr := startFakeAPI(t, f)

	path := filepath.Join(t.TempDir(), "jane_doe.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o600))

	out, _, err := runCLI(t, nil, "upload", "--address", addr, path)
	require.NoError(t, err)
	assert.Equal(t, "Successfully added 'jane_doe.pdf' to the knowledge base.\n", out)
	assert.Equal(t, "%PDF-1.4 fake", f.uploads["jane_doe.pdf"])
}

func TestUploadCommand_Errors(t *testing.T) {
	isolateCLI(t, nil)
	addr := startFakeAPI(t, &fakeAPI{})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := runCLI(t, nil, "upload", "--address", addr, filepath.Join(t.TempDir(), "nope.pdf"))
		require.Error(t, err)
		assert.True(t, aegiserr.HasCode(err, aegiserr.CodeCLIInputInvalid))
	})

	t.Run("rejected type", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("notes"), 0o600))

		_, _, err := runCLI(t, nil, "upload", "--address", addr, path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Only PDF files are allowed")
	})
}

func TestNewAPIClient_AddsScheme(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8000", newAPIClient("127.0.0.1:8000", defaultHTTPClient).baseURL)
	assert.Equal(t, "https://hr.example.com", newAPIClient("https://hr.example.com/", defaultHTTPClient).baseURL)
}

func TestResponseError_PlainBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadGateway,
		Body:       io.NopCloser(strings.NewReader("upstream down\n")),
	}
	err := responseError(resp)
	assert.True(t, aegiserr.HasCode(err, aegiserr.CodeCLIRequestFailure))
	assert.Contains(t, err.Error(), "server returned 502: upstream down")
}
