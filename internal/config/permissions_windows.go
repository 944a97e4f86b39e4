// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

//go:build windows

package config

import "log/slog"

// WarnInsecurePermissions does nothing on Windows, where ACLs rather than
// Unix mode bits control who can read the api key.
func WarnInsecurePermissions(path string) {
	if path != "" {
		slog.Debug("config permission check skipped on Windows", "path", path)
	}
}
