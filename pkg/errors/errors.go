// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error. Codes are dotted
// paths; the last segment is the reason and drives HTTP status mapping.
type Code string

const (
	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"
	CodeConfigAlreadyExists        Code = "config.write.conflict"

	CodeSecretInvalidInput   Code = "secret.input.invalid_input"
	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"

	CodeProviderRequestInvalid   Code = "provider.request.invalid"
	CodeProviderResponseInvalid  Code = "provider.response.invalid"
	CodeProviderUpstreamFailure  Code = "provider.upstream.failure"
	CodeProviderNotFound         Code = "provider.registry.not_found"
	CodeProviderAllUnavailable   Code = "provider.routing.all_unavailable"
	CodeProviderNoDefault        Code = "provider.routing.no_default"
	CodeProviderInvalidModelRef  Code = "provider.routing.invalid_model_ref"
	CodeProviderEmbedUnsupported Code = "provider.embed.unsupported"
	CodeProviderKeyInvalid       Code = "provider.key.invalid"
	CodeProviderKeyCheckFailed   Code = "provider.key.check.failure"

	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"
	CodeStoreInvalidInput       Code = "store.invalid_input"

	CodeIngestExtractFailure  Code = "ingest.extract.failure"
	CodeIngestEmbedFailure    Code = "ingest.embed.failure"
	CodeIngestStoreFailure    Code = "ingest.store.failure"
	CodeIngestTempFileFailure Code = "ingest.tempfile.failure"
	CodeIngestSanitizeFailure Code = "ingest.sanitize.failure"
	CodeIngestWatchFailure    Code = "ingest.watch.failure"

	CodeUploadInvalidType Code = "upload.validate.invalid_type"
	CodeUploadTooLarge    Code = "upload.validate.too_large"
	CodeUploadDuplicate   Code = "upload.validate.conflict"
	CodeChatInvalidInput  Code = "chat.validate.invalid_input"

	CodeSecurityScannerFailure Code = "security.scanner.failure"
	CodeSecurityInputBlocked   Code = "security.input.blocked"

	CodeAgentNotReady          Code = "agent.orchestrator.unavailable"
	CodeAgentLoopFailure       Code = "agent.loop.failure"
	CodeAgentSessionInactive   Code = "agent.session.status.forbidden"
	CodeAgentGenerationTimeout Code = "agent.turn.timeout"
	CodeAgentParseFailure      Code = "agent.output.parse_failure"
	CodeAgentToolFailure       Code = "agent.tool.failure"
	CodeAgentToolInvalid       Code = "agent.tool.register.invalid"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"
	CodeServerRateLimited     Code = "server.request.budget_exceeded"

	CodeCLIServerNotRunning Code = "cli.server.not_running"
	CodeCLIRequestFailure   Code = "cli.request.failure"
	CodeCLIResponseInvalid  Code = "cli.response.invalid"
	CodeCLISetupFailure     Code = "cli.setup.failure"
	CodeCLIInputInvalid     Code = "cli.input.invalid"
)

// Taxonomy names returned by Kind.
const (
	KindIngestion  = "IngestionError"
	KindValidation = "ValidationError"
	KindTimeout    = "GenerationTimeout"
	KindParse      = "ParseFailure"
	KindTool       = "ToolError"
	KindNotReady   = "NotReady"
	KindInternal   = "InternalError"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldSessionID(value string) Attr {
	return Field("session_id", value)
}

func FieldSource(value string) Attr {
	return Field("source", value)
}

func FieldTool(value string) Attr {
	return Field("tool", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// Reclassify returns a new error carrying code whose message embeds err's
// text. Wrap keeps the innermost code of a chain; Reclassify is for taxonomy
// boundaries where the outer code must win. The original code, if any, is
// kept as the "cause_code" field.
func Reclassify(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	if cause := CodeOf(err); cause != "" {
		fields = append(fields, Field("cause_code", string(cause)))
	}
	return New(code, msg+": "+err.Error(), fields...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format" ||
		r == "invalid_type" || r == "blocked"
}

func IsTooLarge(err error) bool {
	return reason(CodeOf(err)) == "too_large"
}

func IsUnauthorized(err error) bool {
	r := reason(CodeOf(err))
	return r == "unauthorized" || r == "forbidden" || r == "denied"
}

func IsBudgetExceeded(err error) bool {
	return reason(CodeOf(err)) == "budget_exceeded"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsUnavailable(err error) bool {
	r := reason(CodeOf(err))
	return r == "unavailable" || r == "all_unavailable"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

// Kind maps err onto the application error taxonomy.
func Kind(err error) string {
	code := CodeOf(err)
	switch {
	case err == nil:
		return ""
	case strings.HasPrefix(string(code), "ingest."):
		return KindIngestion
	case strings.HasPrefix(string(code), "upload.validate."),
		strings.HasPrefix(string(code), "chat.validate."),
		code == CodeSecurityInputBlocked:
		return KindValidation
	case code == CodeAgentGenerationTimeout:
		return KindTimeout
	case code == CodeAgentParseFailure:
		return KindParse
	case code == CodeAgentToolFailure:
		return KindTool
	case code == CodeAgentNotReady:
		return KindNotReady
	default:
		return KindInternal
	}
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsTooLarge(err):
		return http.StatusRequestEntityTooLarge
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnauthorized(err):
		if reason(CodeOf(err)) == "forbidden" || reason(CodeOf(err)) == "denied" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case IsBudgetExceeded(err):
		return http.StatusTooManyRequests
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUnavailable(err):
		return http.StatusServiceUnavailable
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
