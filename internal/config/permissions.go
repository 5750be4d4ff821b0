// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package config

import (
	"log/slog"
	"path/filepath"
)

// Database files under storage.data_dir. Both hold resume text.
var dataFiles = []string{"vectors.db", "memory.db"}

// SensitiveFiles lists the files that should be readable by the owner only:
// the config (it may carry provider keys) and the databases in dataDir.
// Empty arguments are skipped.
func SensitiveFiles(configPath, dataDir string) []string {
	var out []string
	if configPath != "" {
		out = append(out, configPath)
	}
	if dataDir != "" {
		for _, name := range dataFiles {
			out = append(out, filepath.Join(dataDir, name))
		}
	}
	return out
}

// WarnInsecurePermissions logs one warning per sensitive file that other
// users can read. Startup continues either way.
func WarnInsecurePermissions(configPath, dataDir string) {
	for _, path := range InsecureFiles(SensitiveFiles(configPath, dataDir)...) {
		what := "candidate data"
		if path == configPath {
			what = "provider keys"
		}
		slog.Warn("file is readable by other users; "+what+" may be exposed",
			"path", path,
			"recommended", "0600",
		)
	}
}
