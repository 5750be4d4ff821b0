// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package google

var (
	ConvertMessages = convertMessages
	BuildConfig     = buildConfig
	ModelInfo       = modelInfo
	KnownModels     = knownModels
)
