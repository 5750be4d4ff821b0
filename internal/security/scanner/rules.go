// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package scanner

import (
	_ "embed"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

//go:embed rules.yaml
var rulesYAML []byte

type rulesFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Name     string   `yaml:"name"`
	Stages   []Stage  `yaml:"stages"`
	Severity Severity `yaml:"severity"`
	Regex    string   `yaml:"regex"`
}

var (
	rulesOnce  sync.Once
	rulesCache []Rule
	rulesErr   error
)

// DefaultRules returns the embedded rule set, one Rule per (rule, stage)
// pair. The YAML is parsed once; any invalid entry fails the whole load so
// the scanner never starts with partial coverage.
func DefaultRules() ([]Rule, error) {
	rulesOnce.Do(func() {
		rulesCache, rulesErr = ParseRules(rulesYAML)
	})
	if rulesErr != nil {
		return nil, rulesErr
	}
	return append([]Rule(nil), rulesCache...), nil
}

// ParseRules decodes a rules document in the embedded format.
func ParseRules(data []byte) ([]Rule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeSecurityScannerFailure, "parsing scanner rules")
	}
	if len(f.Rules) == 0 {
		return nil, aegiserr.New(aegiserr.CodeSecurityScannerFailure, "no scanner rules defined")
	}

	seen := make(map[string]bool, len(f.Rules))
	var out []Rule
	for _, e := range f.Rules {
		if e.Name == "" {
			return nil, aegiserr.New(aegiserr.CodeSecurityScannerFailure, "scanner rule without a name")
		}
		if seen[e.Name] {
			return nil, aegiserr.Errorf(aegiserr.CodeSecurityScannerFailure, "duplicate scanner rule %q", e.Name)
		}
		seen[e.Name] = true

		if !e.Severity.Valid() {
			return nil, aegiserr.Errorf(aegiserr.CodeSecurityScannerFailure,
				"rule %q has invalid severity %q", e.Name, e.Severity)
		}
		if len(e.Stages) == 0 {
			return nil, aegiserr.Errorf(aegiserr.CodeSecurityScannerFailure, "rule %q has no stages", e.Name)
		}
		re, err := regexp.Compile(e.Regex)
		if err != nil {
			return nil, aegiserr.Wrap(err, aegiserr.CodeSecurityScannerFailure, "compiling scanner rule",
				aegiserr.Field("rule", e.Name))
		}
		for _, st := range e.Stages {
			if !st.Valid() {
				return nil, aegiserr.Errorf(aegiserr.CodeSecurityScannerFailure,
					"rule %q has invalid stage %q", e.Name, st)
			}
			out = append(out, Rule{Stage: st, Name: e.Name, Pattern: re, Severity: e.Severity})
		}
	}
	return out, nil
}
