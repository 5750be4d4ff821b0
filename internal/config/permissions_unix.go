// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

//go:build !windows

package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
)

// InsecureFiles returns the paths whose mode grants read access to group or
// other. Missing files are not reported.
func InsecureFiles(paths ...string) []string {
	var out []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				slog.Debug("permission check skipped", "path", path, "error", err)
			}
			continue
		}
		if info.Mode().Perm()&0o044 != 0 {
			out = append(out, path)
		}
	}
	return out
}
