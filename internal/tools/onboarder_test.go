// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package tools_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-hr/aegis/internal/tools"
)

func TestParseOnboardingRequest(t *testing.T) {
	tests := []struct {
		raw  string
		want tools.OnboardingRequest
	}{
		{
			raw:  "Jane Doe, Software Engineer, 3 days, 150 words",
			want: tools.OnboardingRequest{Days: 3, Words: 150, Details: "Jane Doe, Software Engineer"},
		},
		{
			raw:  "Jane Doe, Software Engineer",
			want: tools.OnboardingRequest{Days: 5, Words: 200, Details: "Jane Doe, Software Engineer"},
		},
		{
			raw:  "a 10-day plan for Raj Patel (Payroll Analyst) in about 400 words",
			want: tools.OnboardingRequest{Days: 10, Words: 400, Details: "a plan for Raj Patel (Payroll Analyst) in about"},
		},
		{
			raw:  "Sam Lee; Data Scientist; 1 day",
			want: tools.OnboardingRequest{Days: 1, Words: 200, Details: "Sam Lee, Data Scientist"},
		},
		{
			raw:  "Mia Chen, Designer, 0 days, 5000 words",
			want: tools.OnboardingRequest{Days: 5, Words: 200, Details: "Mia Chen, Designer"},
		},
		{
			raw:  "Kim, Recruiter, 99999999999999999999999 days",
			want: tools.OnboardingRequest{Days: 5, Words: 200, Details: "Kim, Recruiter"},
		},
		{
			raw:  "Ana, Nurse, 2 days, 3 days, 100 WORDS",
			want: tools.OnboardingRequest{Days: 2, Words: 100, Details: "Ana, Nurse, 3 days"},
		},
		{
			raw:  "   ",
			want: tools.OnboardingRequest{Days: 5, Words: 200, Details: ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, tools.ParseOnboardingRequest(tt.raw))
		})
	}
}

func FuzzParseOnboardingRequest(f *testing.F) {
	for _, seed := range []string{
		"Jane Doe, Software Engineer, 3 days, 150 words",
		"",
		"7days7words",
		"-5 days, -1 words",
		"1 day 1 word ,,, ;;",
		"\xff\xfe 3 days",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		got := tools.ParseOnboardingRequest(raw)
		if got.Days < 1 || got.Days > tools.MaxPlanDays {
			t.Fatalf("days out of range: %d", got.Days)
		}
		if got.Words < 1 || got.Words > tools.MaxPlanWords {
			t.Fatalf("words out of range: %d", got.Words)
		}
	})
}

func TestOnboarder_Invoke(t *testing.T) {
	g := constGenerator("  Day 1: Welcome\n")
	o, err := tools.NewOnboarder(gen(g))
	require.NoError(t, err)
	assert.Equal(t, tools.NameOnboarder, o.Name())
	assert.Equal(t, tools.OnboarderDescription, o.Description())

	got, err := o.Invoke(context.Background(), "Jane Doe, Software Engineer, 3 days, 150 words")
	require.NoError(t, err)
	assert.Equal(t, "Day 1: Welcome", got)

	require.Equal(t, 1, g.calls())
	prompt := g.prompts[0]
	assert.Contains(t, prompt, "3-day onboarding plan")
	assert.Contains(t, prompt, "about 150 words")
	assert.Contains(t, prompt, "NEW HIRE:\nJane Doe, Software Engineer\n")
}

func TestOnboarder_EmptyDetails(t *testing.T) {
	g := constGenerator("plan")
	o, err := tools.NewOnboarder(gen(g))
	require.NoError(t, err)

	_, err = o.Invoke(context.Background(), "2 days")
	require.NoError(t, err)
	assert.Contains(t, g.prompts[0], "2-day onboarding plan")
	assert.Contains(t, g.prompts[0], "general plan")
}

func TestRenderOnboardingPrompt_NoLeftoverPlaceholders(t *testing.T) {
	p := tools.RenderOnboardingPrompt(tools.OnboardingRequest{Days: 4, Words: 300, Details: "{days} literal"})
	assert.Contains(t, p, "4-day")
	assert.Contains(t, p, "{days} literal")
	assert.NotContains(t, p, "{words}")
}
