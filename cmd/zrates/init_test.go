// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
)

func TestInitCommand_WritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zrates.yaml")

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"init", "--config", path})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Config written to "+path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "zrates configuration")
	assert.Contains(t, string(content), "metalpriceapi")
}

func TestInitCommand_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zrates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keep: me\n"), 0o600))

	root := NewRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"init", "--config", path})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, zrerr.HasCode(err, zrerr.CodeConfigFileConflict),
		"expected %s, got %s", zrerr.CodeConfigFileConflict, zrerr.CodeOf(err))
	assert.Contains(t, err.Error(), "--force")

	content, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "keep: me\n", string(content))
}

func TestInitCommand_ForceOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zrates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old: junk\n"), 0o600))

	root := NewRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetArgs([]string{"init", "--config", path, "--force"})

	err := root.Execute()
	require.NoError(t, err)

	content, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Contains(t, string(content), "zrates configuration")
	assert.NotContains(t, string(content), "old: junk")
}
