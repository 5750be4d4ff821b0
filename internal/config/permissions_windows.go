// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

//go:build windows

package config

// InsecureFiles always reports nothing: access on Windows is governed by
// ACLs, not mode bits.
func InsecureFiles(...string) []string { return nil }
