// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package sanitize

import (
	"context"
	"log/slog"

	"github.com/aegis-hr/aegis/internal/security/scanner"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// InputFilter screens chat messages with the input-stage rules and applies
// the configured scanner mode.
type InputFilter struct {
	scanner scanner.Scanner
	mode    scanner.Mode
	logger  *slog.Logger
}

// NewInputFilter returns a filter. A nil scanner or ModeOff yields a filter
// that passes every message through untouched.
func NewInputFilter(s scanner.Scanner, mode scanner.Mode, logger *slog.Logger) *InputFilter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InputFilter{scanner: s, mode: mode, logger: logger}
}

// Filter returns the message to hand to the orchestrator. In block mode a
// threat yields a security.input.blocked error.
func (f *InputFilter) Filter(ctx context.Context, sessionID, message string) (string, error) {
	if f == nil || f.scanner == nil || f.mode == scanner.ModeOff {
		return message, nil
	}

	result, err := f.scanner.Scan(ctx, message, scanner.StageInput)
	if err != nil {
		return "", aegiserr.Reclassify(err, aegiserr.CodeSecurityScannerFailure, "scanning chat message",
			aegiserr.FieldSessionID(sessionID))
	}
	if result.Threat {
		f.logger.Warn("chat message matched security rules",
			"session_id", sessionID,
			"mode", string(f.mode),
			"rules", result.Rules())
	}

	out, err := scanner.ApplyMode(f.mode, result)
	if err != nil {
		return "", aegiserr.With(err, aegiserr.FieldSessionID(sessionID))
	}
	// Flag mode forwards what the user typed; the normalized form is only
	// used for matching and redaction.
	if f.mode == scanner.ModeFlag {
		return message, nil
	}
	return out, nil
}
