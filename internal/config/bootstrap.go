// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package config

import (
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// DefaultConfigYAML is the commented config written on first run and by
// `aegis init --defaults`.
//
//go:embed aegis.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath is the per-user config location, one of the paths the CLI
// searches.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", aegiserr.Errorf(aegiserr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "aegis", "aegis.yaml"), nil
}

// BootstrapConfig creates path with DefaultConfigYAML, owner-only. It reports
// false with a nil error when the file is already there; two processes
// starting at once cannot both write it.
func BootstrapConfig(path string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, aegiserr.Wrap(err, aegiserr.CodeConfigLoadReadFailure, "creating config directory")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, aegiserr.Wrap(err, aegiserr.CodeConfigLoadReadFailure, "creating default config")
	}

	if _, err := f.Write(DefaultConfigYAML); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return false, aegiserr.Wrap(err, aegiserr.CodeConfigLoadReadFailure, "writing default config")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return false, aegiserr.Wrap(err, aegiserr.CodeConfigLoadReadFailure, "writing default config")
	}
	return true, nil
}
