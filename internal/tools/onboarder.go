// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package tools

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// Onboarding plan limits. Values outside (0, max] fall back to the default.
const (
	DefaultPlanDays  = 5
	DefaultPlanWords = 200
	MaxPlanDays      = 30
	MaxPlanWords     = 2000
)

// OnboardingRequest is the parsed form of an Onboarder input.
type OnboardingRequest struct {
	Days    int
	Words   int
	Details string
}

var (
	daysPattern  = regexp.MustCompile(`(?i)\b(\d+)\s*-?\s*days?\b`)
	wordsPattern = regexp.MustCompile(`(?i)\b(\d+)\s*-?\s*words?\b`)
	separatorRun = regexp.MustCompile(`\s*[,;]\s*(?:[,;]\s*)*`)
	edgeJunk     = regexp.MustCompile(`^[\s,;:.\-]+|[\s,;:\-]+$`)
)

// ParseOnboardingRequest extracts the plan length and word budget from a
// free-text request such as "Jane Doe, Software Engineer, 3 days, 150 words".
// It never fails: anything it cannot use falls back to the defaults.
func ParseOnboardingRequest(raw string) OnboardingRequest {
	req := OnboardingRequest{Days: DefaultPlanDays, Words: DefaultPlanWords}

	rest := raw
	rest, req.Days = takeCount(rest, daysPattern, DefaultPlanDays, MaxPlanDays)
	rest, req.Words = takeCount(rest, wordsPattern, DefaultPlanWords, MaxPlanWords)

	rest = strings.Join(strings.Fields(rest), " ")
	rest = separatorRun.ReplaceAllString(rest, ", ")
	req.Details = edgeJunk.ReplaceAllString(rest, "")
	return req
}

// takeCount removes the first match of pattern from s and returns its
// number, or def when there is no usable match.
func takeCount(s string, pattern *regexp.Regexp, def, limit int) (string, int) {
	loc := pattern.FindStringSubmatchIndex(s)
	if loc == nil {
		return s, def
	}
	n, err := strconv.Atoi(s[loc[2]:loc[3]])
	rest := s[:loc[0]] + " " + s[loc[1]:]
	if err != nil || n <= 0 || n > limit {
		return rest, def
	}
	return rest, n
}

// Onboarder writes onboarding plans. It does no retrieval.
type Onboarder struct {
	gen Generation
}

// NewOnboarder returns an Onboarder.
func NewOnboarder(gen Generation) (*Onboarder, error) {
	if err := gen.validate(NameOnboarder); err != nil {
		return nil, err
	}
	return &Onboarder{gen: gen}, nil
}

func (o *Onboarder) Name() string        { return NameOnboarder }
func (o *Onboarder) Description() string { return OnboarderDescription }

// Invoke parses raw and generates the plan.
func (o *Onboarder) Invoke(ctx context.Context, raw string) (string, error) {
	req := ParseOnboardingRequest(raw)
	details := req.Details
	if details == "" {
		details = "No name or role given; write a general plan."
	}
	return o.gen.generate(ctx, RenderOnboardingPrompt(OnboardingRequest{
		Days:    req.Days,
		Words:   req.Words,
		Details: details,
	}))
}

// RenderOnboardingPrompt fills the plan prompt for req.
func RenderOnboardingPrompt(req OnboardingRequest) string {
	return fill(onboardingPrompt, map[string]string{
		"days":    strconv.Itoa(req.Days),
		"words":   strconv.Itoa(req.Words),
		"details": req.Details,
	})
}
