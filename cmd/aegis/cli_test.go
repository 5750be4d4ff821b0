// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/aegis-hr/aegis/internal/secrets"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// mockSecretStore is an in-memory secrets.Store for testing.
type mockSecretStore struct {
	data map[string]string // key -> value (service is always "aegis")
}

func newMockSecretStore(keys ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for _, k := range keys {
		m.data[k] = "redacted-value"
	}
	return m
}

func (m *mockSecretStore) Set(_, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *mockSecretStore) Get(_, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", aegiserr.Errorf(aegiserr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return aegiserr.Errorf(aegiserr.CodeSecretNotFound, "not found")
	}
	delete(m.data, key)
	return nil
}

// isolateCLI points HOME at a temp dir, resets the global viper and swaps
// the keyring for store so commands never touch the real environment.
func isolateCLI(t *testing.T, store secrets.Store) {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	for _, name := range []string{"GOOGLE_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(name, "")
	}

	viper.Reset()
	t.Cleanup(viper.Reset)

	if store == nil {
		store = newMockSecretStore()
	}
	orig := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return store }
	t.Cleanup(func() { secretStoreFactory = orig })
}

// runCLI executes the root command with args and returns stdout and stderr.
func runCLI(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()

	root := NewRootCmd()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// addrOf strips the scheme from a test server URL.
func addrOf(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}
