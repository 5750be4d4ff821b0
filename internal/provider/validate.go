// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package provider

import (
	"context"
	"io"
	"net/http"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// ProviderName identifies a provider the init wizard can configure.
type ProviderName string

const (
	ProviderAnthropic  ProviderName = "anthropic"
	ProviderOpenAI     ProviderName = "openai"
	ProviderGoogle     ProviderName = "google"
	ProviderOpenRouter ProviderName = "openrouter"
)

type keyCheck struct {
	modelsURL string
	envVar    string
	authorize func(h http.Header, key string)
}

func bearer(h http.Header, key string) { h.Set("Authorization", "Bearer "+key) }

// keyChecks is ordered by preference; the wizard offers the first as default.
var keyChecks = []struct {
	name ProviderName
	keyCheck
}{
	{ProviderGoogle, keyCheck{
		modelsURL: "https://generativelanguage.googleapis.com/v1beta/models",
		envVar:    "GOOGLE_API_KEY",
		authorize: func(h http.Header, key string) { h.Set("x-goog-api-key", key) },
	}},
	{ProviderOpenAI, keyCheck{
		modelsURL: "https://api.openai.com/v1/models",
		envVar:    "OPENAI_API_KEY",
		authorize: bearer,
	}},
	{ProviderAnthropic, keyCheck{
		modelsURL: "https://api.anthropic.com/v1/models",
		envVar:    "ANTHROPIC_API_KEY",
		authorize: func(h http.Header, key string) {
			h.Set("x-api-key", key)
			h.Set("anthropic-version", "2023-06-01")
		},
	}},
	{ProviderOpenRouter, keyCheck{
		modelsURL: "https://openrouter.ai/api/v1/models",
		envVar:    "OPENROUTER_API_KEY",
		authorize: bearer,
	}},
}

func lookupKeyCheck(p ProviderName) (keyCheck, bool) {
	for _, kc := range keyChecks {
		if kc.name == p {
			return kc.keyCheck, true
		}
	}
	return keyCheck{}, false
}

// SupportedProviders lists the providers offered by the init wizard, default
// first.
func SupportedProviders() []ProviderName {
	out := make([]ProviderName, len(keyChecks))
	for i, kc := range keyChecks {
		out[i] = kc.name
	}
	return out
}

// EnvKeyVar names the environment variable consulted when no key is
// configured for p. It is empty for unknown providers.
func EnvKeyVar(p ProviderName) string {
	kc, _ := lookupKeyCheck(p)
	return kc.envVar
}

// ValidateKey lists models with key to confirm it is accepted.
func ValidateKey(ctx context.Context, client *http.Client, p ProviderName, key string) error {
	return ValidateKeyAt(ctx, client, p, key, "")
}

// ValidateKeyAt is ValidateKey against modelsURL instead of the provider's
// public endpoint, for OpenAI-compatible gateways. An empty modelsURL uses
// the default. Only 401 and 403 are reported as CodeProviderKeyInvalid; any
// other failure means the check could not complete.
func ValidateKeyAt(ctx context.Context, client *http.Client, p ProviderName, key, modelsURL string) error {
	kc, ok := lookupKeyCheck(p)
	if !ok {
		return aegiserr.Errorf(aegiserr.CodeProviderKeyInvalid, "unknown provider: %q", p)
	}
	if modelsURL == "" {
		modelsURL = kc.modelsURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, modelsURL, nil)
	if err != nil {
		return aegiserr.Errorf(aegiserr.CodeProviderKeyCheckFailed, "building %s key check: %w", p, err)
	}
	kc.authorize(req.Header, key)

	resp, err := client.Do(req)
	if err != nil {
		return aegiserr.Errorf(aegiserr.CodeProviderKeyCheckFailed, "checking %s key: %w", p, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return aegiserr.Errorf(aegiserr.CodeProviderKeyInvalid, "%s rejected the API key (HTTP %d)", p, resp.StatusCode)
	case resp.StatusCode >= 400:
		return aegiserr.Errorf(aegiserr.CodeProviderKeyCheckFailed, "%s key check failed (HTTP %d)", p, resp.StatusCode)
	}
	return nil
}
