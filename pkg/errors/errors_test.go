// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// New / Errorf / Wrap
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := aegiserr.New(
		aegiserr.CodeIngestExtractFailure,
		"no text in document",
		aegiserr.FieldSource("resume.pdf"),
		aegiserr.Field("pages", 3),
	)

	require.Error(t, err)
	assert.Equal(t, aegiserr.CodeIngestExtractFailure, aegiserr.CodeOf(err))
	assert.True(t, aegiserr.HasCode(err, aegiserr.CodeIngestExtractFailure))

	fields := aegiserr.FieldsOf(err)
	assert.Equal(t, "resume.pdf", fields["source"])
	assert.Equal(t, 3, fields["pages"])
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := aegiserr.Errorf(aegiserr.CodeStoreDatabaseFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, aegiserr.CodeStoreDatabaseFailure, aegiserr.CodeOf(err))
}

func TestWrapPreservesChainAndCode(t *testing.T) {
	root := stderrors.New("connection reset")
	err := aegiserr.Wrap(root, aegiserr.CodeProviderUpstreamFailure, "streaming chat",
		aegiserr.FieldProvider("google"))

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.Equal(t, aegiserr.CodeProviderUpstreamFailure, aegiserr.CodeOf(err))
	assert.Equal(t, "google", aegiserr.FieldsOf(err)["provider"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, aegiserr.Wrap(nil, aegiserr.CodeServerInternalFailure, "ignored"))
	assert.NoError(t, aegiserr.Wrapf(nil, aegiserr.CodeServerInternalFailure, "ignored %s", "arg"))
	assert.NoError(t, aegiserr.Reclassify(nil, aegiserr.CodeAgentToolFailure, "ignored"))
}

func TestWrapKeepsInnermostCode(t *testing.T) {
	inner := aegiserr.New(aegiserr.CodeStoreDatabaseFailure, "db")
	outer := aegiserr.Wrap(inner, aegiserr.CodeServerInternalFailure, "handler")
	assert.Equal(t, aegiserr.CodeStoreDatabaseFailure, aegiserr.CodeOf(outer))
}

func TestReclassifyOverridesInnerCode(t *testing.T) {
	inner := aegiserr.New(aegiserr.CodeProviderUpstreamFailure, "quota exceeded")
	err := aegiserr.Reclassify(inner, aegiserr.CodeIngestEmbedFailure, "embedding chunks",
		aegiserr.FieldSource("policy.txt"))

	assert.Equal(t, aegiserr.CodeIngestEmbedFailure, aegiserr.CodeOf(err))
	assert.Contains(t, err.Error(), "embedding chunks: quota exceeded")

	fields := aegiserr.FieldsOf(err)
	assert.Equal(t, "policy.txt", fields["source"])
	assert.Equal(t, string(aegiserr.CodeProviderUpstreamFailure), fields["cause_code"])
}

func TestWithOnPlainErrorDefaultsToInternalCode(t *testing.T) {
	enriched := aegiserr.With(stderrors.New("something broke"), aegiserr.FieldSessionID("s-1"))

	require.Error(t, enriched)
	assert.Equal(t, aegiserr.CodeServerInternalFailure, aegiserr.CodeOf(enriched))
	assert.Equal(t, "s-1", aegiserr.FieldsOf(enriched)["session_id"])
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, aegiserr.Code(""), aegiserr.CodeOf(nil))
	assert.Equal(t, aegiserr.Code(""), aegiserr.CodeOf(stderrors.New("plain")))
}

// ---------------------------------------------------------------------------
// Kind / HTTPStatus
// ---------------------------------------------------------------------------

func TestKind(t *testing.T) {
	tests := []struct {
		code aegiserr.Code
		want string
	}{
		{aegiserr.CodeIngestExtractFailure, aegiserr.KindIngestion},
		{aegiserr.CodeIngestEmbedFailure, aegiserr.KindIngestion},
		{aegiserr.CodeIngestTempFileFailure, aegiserr.KindIngestion},
		{aegiserr.CodeUploadInvalidType, aegiserr.KindValidation},
		{aegiserr.CodeUploadTooLarge, aegiserr.KindValidation},
		{aegiserr.CodeChatInvalidInput, aegiserr.KindValidation},
		{aegiserr.CodeSecurityInputBlocked, aegiserr.KindValidation},
		{aegiserr.CodeAgentGenerationTimeout, aegiserr.KindTimeout},
		{aegiserr.CodeAgentParseFailure, aegiserr.KindParse},
		{aegiserr.CodeAgentToolFailure, aegiserr.KindTool},
		{aegiserr.CodeAgentNotReady, aegiserr.KindNotReady},
		{aegiserr.CodeStoreDatabaseFailure, aegiserr.KindInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, aegiserr.Kind(aegiserr.New(tt.code, "x")))
		})
	}

	assert.Empty(t, aegiserr.Kind(nil))
	assert.Equal(t, aegiserr.KindInternal, aegiserr.Kind(stderrors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code aegiserr.Code
		want int
	}{
		{aegiserr.CodeUploadInvalidType, http.StatusBadRequest},
		{aegiserr.CodeUploadTooLarge, http.StatusRequestEntityTooLarge},
		{aegiserr.CodeUploadDuplicate, http.StatusConflict},
		{aegiserr.CodeChatInvalidInput, http.StatusBadRequest},
		{aegiserr.CodeSecurityInputBlocked, http.StatusBadRequest},
		{aegiserr.CodeAgentGenerationTimeout, http.StatusGatewayTimeout},
		{aegiserr.CodeAgentNotReady, http.StatusServiceUnavailable},
		{aegiserr.CodeProviderAllUnavailable, http.StatusServiceUnavailable},
		{aegiserr.CodeProviderUpstreamFailure, http.StatusBadGateway},
		{aegiserr.CodeServerRateLimited, http.StatusTooManyRequests},
		{aegiserr.CodeSecretNotFound, http.StatusNotFound},
		{aegiserr.CodeAgentToolFailure, http.StatusInternalServerError},
		{aegiserr.CodeIngestEmbedFailure, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, aegiserr.HTTPStatus(aegiserr.New(tt.code, "x")))
		})
	}
}

func TestJoinCarriesAllMessages(t *testing.T) {
	err := aegiserr.Join(stderrors.New("first"), stderrors.New("second"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")
	assert.Equal(t, aegiserr.CodeServerInternalFailure, aegiserr.CodeOf(err))
}
