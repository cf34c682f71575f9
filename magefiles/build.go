//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "tasksync"
	binaryDir  = "bin"
	cmdDir     = "./cmd/tasksync"
)

// Build compiles the tasksync binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Install installs tasksync to GOPATH/bin.
func Install() error {
	return sh.RunV(binGo, "install", cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	return os.RemoveAll(binaryDir)
}

// All builds after running the full test suite.
func All() error {
	mg.Deps(Test.All)
	return Build()
}
