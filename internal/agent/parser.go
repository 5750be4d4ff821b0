// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package agent

import (
	"regexp"
	"strings"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// Step is one parsed model reply. Exactly one of Action or FinalAnswer is
// set. Observation is filled in after the tool runs.
type Step struct {
	Thought     string `json:"thought,omitempty"`
	Action      string `json:"action,omitempty"`
	ActionInput string `json:"action_input,omitempty"`
	Observation string `json:"observation,omitempty"`
	FinalAnswer string `json:"final_answer,omitempty"`

	// log is the reply as the model wrote it, replayed in the scratchpad.
	log string
}

// IsFinal reports whether the step ends the turn.
func (s Step) IsFinal() bool { return s.Action == "" }

var (
	finalAnswerPattern = regexp.MustCompile(`(?s)Final\s+Answer\s*:(.*)$`)
	actionPattern      = regexp.MustCompile(`(?s)Action\s*\d*\s*:(.*?)\n?\s*Action\s*\d*\s*Input\s*\d*\s*:(.*)$`)
	actionLinePattern  = regexp.MustCompile(`(?m)^\s*Action\s*\d*\s*:`)
	observationPattern = regexp.MustCompile(`(?m)^\s*Observation\s*:`)
	thoughtPrefix      = regexp.MustCompile(`(?i)^\s*Thought\s*:\s*`)
)

// ParseStep reads a reply in the reasoning format. It accepts either a
// "Final Answer:" or an "Action:" line followed by "Action Input:". Text
// from an invented "Observation:" line onward is dropped first.
func ParseStep(text string) (Step, error) {
	if loc := observationPattern.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	text = strings.TrimRight(text, " \t\r\n")
	step := Step{log: text}

	final := finalAnswerPattern.FindStringSubmatchIndex(text)
	action := actionPattern.FindStringSubmatch(text)

	switch {
	case final != nil && (action != nil || actionLinePattern.MatchString(text[:final[0]])):
		return Step{}, parseFailure("reply has both an action and a final answer", text)

	case final != nil:
		step.FinalAnswer = strings.TrimSpace(text[final[2]:final[3]])
		if step.FinalAnswer == "" {
			return Step{}, parseFailure("final answer is empty", text)
		}
		step.Thought = thought(text[:final[0]])
		return step, nil

	case action != nil:
		step.Action = unquote(strings.TrimSpace(action[1]))
		step.ActionInput = unquote(strings.TrimSpace(action[2]))
		if step.Action == "" {
			return Step{}, parseFailure("action names no tool", text)
		}
		if strings.ContainsAny(step.Action, "\r\n") {
			return Step{}, parseFailure("action spans several lines", text)
		}
		step.Thought = thought(text[:strings.Index(text, action[0])])
		return step, nil

	case actionLinePattern.MatchString(text):
		return Step{}, parseFailure("action has no action input", text)

	default:
		return Step{}, parseFailure("reply has neither an action nor a final answer", text)
	}
}

func thought(prefix string) string {
	return strings.TrimSpace(thoughtPrefix.ReplaceAllString(prefix, ""))
}

// unquote strips one layer of matching quotes or backticks.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

func parseFailure(msg, text string) error {
	const maxEcho = 200
	if len(text) > maxEcho {
		text = text[:maxEcho]
	}
	return aegiserr.New(aegiserr.CodeAgentParseFailure, msg, aegiserr.Field("reply", text))
}
