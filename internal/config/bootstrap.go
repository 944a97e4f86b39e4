// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
)

//go:embed zrates.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/zrates/zrates.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", zrerr.Errorf(zrerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "zrates", "zrates.yaml"), nil
}

// BootstrapConfig writes the default commented config to the default path
// if it does not already exist. Returns the path written, or empty string
// if the file already existed or an error occurred (logged and skipped).
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return "" // already exists
	}

	if err := WriteDefaultConfig(cfgPath, false); err != nil {
		slog.Debug("skipping config bootstrap", "path", cfgPath, "error", err)
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}

// WriteDefaultConfig writes the commented default config to path. Without
// force an existing file is left untouched and reported as a conflict.
func WriteDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return zrerr.Errorf(zrerr.CodeConfigFileConflict,
				"config already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return zrerr.Errorf(zrerr.CodeConfigWriteFailure, "creating config directory: %w", err)
	}
	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		return zrerr.Errorf(zrerr.CodeConfigWriteFailure, "writing config %s: %w", path, err)
	}
	return nil
}
