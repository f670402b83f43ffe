// Copyright (C) 2025 sage-x-project
// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"strings"
	"testing"
)

func TestVersionConstants(t *testing.T) {
	if version == "" {
		t.Error("version constant should not be empty")
	}
	if buildDate == "" {
		t.Error("buildDate constant should not be empty")
	}
	if parts := strings.Split(version, "."); len(parts) < 2 {
		t.Errorf("version should be in semantic versioning format, got: %s", version)
	}
}

func TestVersionCmdHasVerboseFlag(t *testing.T) {
	if versionCmd.Flags().Lookup("verbose") == nil {
		t.Error("expected version command to have a verbose flag")
	}
}

func TestRootCmdRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	if !names["serve"] {
		t.Error("expected rootCmd to register the serve command")
	}
	if !names["version"] {
		t.Error("expected rootCmd to register the version command")
	}
}
