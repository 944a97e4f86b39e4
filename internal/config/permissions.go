// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

//go:build !windows

package config

import (
	"log/slog"
	"os"
)

// WarnInsecurePermissions logs a warning when the config file grants any
// access to group or other users. The file can carry the metalprice-api
// key, so it should be private to its owner. The check never fails startup.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		// Missing or unreadable files surface through Load instead.
		slog.Debug("skipping config permission check", "path", path, "error", err)
		return
	}

	if exposed := info.Mode().Perm() & 0o077; exposed != 0 {
		slog.Warn("config file has insecure permissions, the api key may be exposed to other users",
			"path", path,
			"mode", info.Mode(),
			"recommended", "0600",
		)
	}
}
