//go:build tools

package tools

// Pins build tooling so `go run` / `go tool` resolve consistent versions.
import (
	_ "github.com/go-task/task/v3/cmd/task"
	_ "github.com/golangci/golangci-lint/v2/cmd/golangci-lint"
)
