// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package tools

var (
	ExtractFields    = extractFields
	NormalizeVerdict = normalizeVerdict
	FormatContext    = formatContext
)
