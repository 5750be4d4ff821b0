// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package scanner is the deterministic half of content screening: a set of
// regular expressions for prompt injection and leaked credentials, applied
// to Unicode-normalized text.
package scanner

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// Stage identifies which content a rule screens.
type Stage string

const (
	// StageInput is a user's chat message.
	StageInput Stage = "input"
	// StageDocument is a chunk of an ingested document.
	StageDocument Stage = "document"
)

// Valid reports whether the stage is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageInput, StageDocument:
		return true
	default:
		return false
	}
}

// Severity indicates how critical a detection is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Valid reports whether the severity is a known severity level.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

// ScanResult holds the outcome of a scan.
type ScanResult struct {
	Threat  bool
	Matches []Match
	// Content is the normalized text the matches refer to. Redaction must
	// use it rather than the caller's original string.
	Content string
}

// Match describes a single pattern match. Location and Length are byte
// offsets into ScanResult.Content.
type Match struct {
	Rule     string
	Location int
	Length   int
	Severity Severity
}

// Rules returns the distinct rule names that matched.
func (r ScanResult) Rules() []string {
	var names []string
	for _, m := range r.Matches {
		if !slices.Contains(names, m.Rule) {
			names = append(names, m.Rule)
		}
	}
	return names
}

// Scanner scans content for threats.
type Scanner interface {
	Scan(ctx context.Context, content string, stage Stage) (ScanResult, error)
}

// Rule defines a detection pattern for one stage.
type Rule struct {
	Stage    Stage
	Name     string
	Pattern  *regexp.Regexp
	Severity Severity
}

// DefaultMaxContentLength is the default maximum content size accepted by
// RegexScanner (1MB). Larger content is reported as a threat outright.
const DefaultMaxContentLength = 1 << 20

// RegexScanner implements Scanner using compiled regexes.
type RegexScanner struct {
	rules            []Rule
	maxContentLength int
}

var _ Scanner = (*RegexScanner)(nil)

// NewRegexScanner creates a scanner with the given rules.
func NewRegexScanner(rules []Rule) (*RegexScanner, error) {
	for i, r := range rules {
		if r.Pattern == nil {
			return nil, aegiserr.Errorf(aegiserr.CodeSecurityScannerFailure, "rule %d (%s) has nil pattern", i, r.Name)
		}
		if !r.Stage.Valid() {
			return nil, aegiserr.Errorf(aegiserr.CodeSecurityScannerFailure, "rule %d (%s) has invalid stage %q", i, r.Name, r.Stage)
		}
		if r.Name == "" {
			return nil, aegiserr.Errorf(aegiserr.CodeSecurityScannerFailure, "rule %d has empty name", i)
		}
		if !r.Severity.Valid() {
			return nil, aegiserr.Errorf(aegiserr.CodeSecurityScannerFailure, "rule %d (%s) has invalid severity %q", i, r.Name, r.Severity)
		}
	}
	return &RegexScanner{rules: rules, maxContentLength: DefaultMaxContentLength}, nil
}

// NewDefaultScanner returns a scanner loaded with DefaultRules.
func NewDefaultScanner() (*RegexScanner, error) {
	rules, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	return NewRegexScanner(rules)
}

// invisibleCharReplacer strips zero-width and other invisible characters
// that can split a keyword without changing how it renders.
var invisibleCharReplacer = strings.NewReplacer(
	"\u200b", "", // zero-width space
	"\u200c", "", // zero-width non-joiner
	"\u200d", "", // zero-width joiner
	"\ufeff", "", // zero-width no-break space / BOM
	"\u00ad", "", // soft hyphen
	"\u034f", "", // combining grapheme joiner
	"\u061c", "", // Arabic letter mark
	"\u180e", "", // Mongolian vowel separator
	"\u2060", "", // word joiner
	"\u2061", "", // invisible function application
	"\u2062", "", // invisible times
	"\u2063", "", // invisible separator
	"\u2064", "", // invisible plus
)

// normalize strips invisible characters and applies NFKC, which folds
// full-width and other compatibility forms onto ASCII.
func normalize(s string) string {
	s = invisibleCharReplacer.Replace(s)
	return norm.NFKC.String(s)
}

// Scan checks content against the rules of the given stage.
func (s *RegexScanner) Scan(_ context.Context, content string, stage Stage) (ScanResult, error) {
	if !stage.Valid() {
		return ScanResult{}, aegiserr.Errorf(aegiserr.CodeSecurityScannerFailure, "invalid scan stage %q", stage)
	}

	content = normalize(content)

	if len(content) > s.maxContentLength {
		return ScanResult{Threat: true, Content: content, Matches: []Match{{
			Rule:     "content_too_large",
			Location: 0,
			Length:   len(content),
			Severity: SeverityHigh,
		}}}, nil
	}

	result := ScanResult{Content: content}

	for _, rule := range s.rules {
		if rule.Stage != stage {
			continue
		}
		for _, loc := range rule.Pattern.FindAllStringIndex(content, -1) {
			result.Threat = true
			result.Matches = append(result.Matches, Match{
				Rule:     rule.Name,
				Location: loc[0],
				Length:   loc[1] - loc[0],
				Severity: rule.Severity,
			})
		}
	}

	return result, nil
}

// Mode defines how a scan result is acted on.
type Mode string

const (
	ModeBlock  Mode = "block"
	ModeFlag   Mode = "flag"
	ModeRedact Mode = "redact"
	ModeOff    Mode = "off"
)

// ParseMode parses a mode string (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeBlock, ModeFlag, ModeRedact, ModeOff:
		return m, nil
	default:
		return "", aegiserr.Errorf(aegiserr.CodeConfigValidateInvalidValue, "invalid scanner mode: %q", s)
	}
}

// ApplyMode applies mode to a scan result and returns the content to pass
// on. The returned text is always the normalized ScanResult.Content. Block
// fails on any threat; flag and off pass content through; redact replaces
// every match with [REDACTED].
func ApplyMode(mode Mode, result ScanResult) (string, error) {
	switch mode {
	case ModeBlock:
		if !result.Threat {
			return result.Content, nil
		}
		firstRule := "unknown"
		if len(result.Matches) > 0 {
			firstRule = result.Matches[0].Rule
		}
		return "", aegiserr.New(aegiserr.CodeSecurityInputBlocked,
			"message blocked by security scanner",
			aegiserr.Field("matches", len(result.Matches)),
			aegiserr.Field("first_rule", firstRule),
		)
	case ModeFlag, ModeOff:
		return result.Content, nil
	case ModeRedact:
		if !result.Threat {
			return result.Content, nil
		}
		return redact(result.Content, result.Matches), nil
	default:
		return "", aegiserr.Errorf(aegiserr.CodeSecurityScannerFailure, "unknown scanner mode %q", mode)
	}
}

// redact replaces matched regions in content with [REDACTED], merging
// overlapping matches first.
func redact(content string, matches []Match) string {
	sorted := slices.DeleteFunc(slices.Clone(matches), func(m Match) bool {
		return m.Location < 0 || m.Length <= 0
	})
	if len(sorted) == 0 {
		return content
	}

	slices.SortFunc(sorted, func(a, b Match) int { return a.Location - b.Location })

	type span struct{ start, end int }
	spans := []span{{sorted[0].Location, sorted[0].Location + sorted[0].Length}}
	for _, m := range sorted[1:] {
		last := &spans[len(spans)-1]
		end := m.Location + m.Length
		if m.Location <= last.end {
			last.end = max(last.end, end)
		} else {
			spans = append(spans, span{m.Location, end})
		}
	}

	var b strings.Builder
	b.Grow(len(content))
	pos := 0
	for _, s := range spans {
		if s.start >= len(content) {
			break
		}
		b.WriteString(content[pos:s.start])
		b.WriteString("[REDACTED]")
		pos = min(s.end, len(content))
	}
	b.WriteString(content[pos:])
	return b.String()
}
