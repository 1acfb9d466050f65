//go:build tools

// Package tools pins code generators so `go generate ./...` uses the version in go.mod.
package tools

import (
	// mockgen regenerates internal/mocks from internal/ports.
	_ "go.uber.org/mock/mockgen"
)
