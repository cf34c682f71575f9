//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets (all, unit, integration).
type Test mg.Namespace

// All runs all tests (unit and integration).
func (Test) All() error {
	return sh.RunV(binGo, "test", "-v", "./...")
}

// Unit runs only unit tests, excluding the integration tree.
func (Test) Unit() error {
	return sh.RunV(binGo, "test", "-v", "./cmd/...", "./internal/...", "./pkg/...")
}

// Integration runs the end-to-end reconciliation tests.
func (Test) Integration() error {
	return sh.RunV(binGo, "test", "-v", "./tests/integration/...")
}

// Cover runs all tests with a coverage profile written to coverage.out.
func (Test) Cover() error {
	return sh.RunV(binGo, "test", "-coverprofile=coverage.out", "./...")
}
