// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/switchyard-foundation/switchyard/lib/codec"
	"github.com/switchyard-foundation/switchyard/lib/schema"
)

// Runner executes one agent turn. Implementations must respect ctx
// cancellation and never block past their configured timeout.
type Runner interface {
	Invoke(ctx context.Context, request schema.InvocationRequest) (schema.InvocationResponse, error)
}

// SandboxConfig configures the subprocess Runner.
type SandboxConfig struct {
	// Binary is the sandbox runtime executable. Required.
	Binary string

	// Args are passed before the payload-on-stdin convention kicks
	// in. Optional.
	Args []string

	// Timeout bounds one invocation. Zero means DefaultTimeout.
	Timeout time.Duration

	// Logger receives per-invocation records. Nil means discard.
	Logger *slog.Logger
}

// DefaultTimeout is the per-invocation bound when none is configured.
// Agent turns routinely take tens of seconds; five minutes is the
// point past which a turn is considered wedged.
const DefaultTimeout = 5 * time.Minute

// Sandbox runs each invocation as a subprocess of the configured
// binary, passing the request as CBOR on stdin and reading the CBOR
// response from stdout. Stderr is captured and attached to failure
// errors for diagnosis.
type Sandbox struct {
	binary  string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewSandbox validates the config and returns the subprocess Runner.
func NewSandbox(cfg SandboxConfig) (*Sandbox, error) {
	if cfg.Binary == "" {
		return nil, fmt.Errorf("agent: Binary is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sandbox{binary: cfg.Binary, args: cfg.Args, timeout: timeout, logger: logger}, nil
}

// Invoke runs one turn. A non-nil error means the sandbox itself
// failed (spawn failure, timeout, unparseable output); an application
// failure inside the agent comes back as a response with status
// "error" and a nil error.
func (s *Sandbox) Invoke(ctx context.Context, request schema.InvocationRequest) (schema.InvocationResponse, error) {
	payload, err := codec.Marshal(request)
	if err != nil {
		return schema.InvocationResponse{}, fmt.Errorf("agent: marshaling request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.binary, s.args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(started)

	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return schema.InvocationResponse{}, fmt.Errorf("agent: invocation for %s timed out after %s", request.GroupFolder, s.timeout)
		}
		return schema.InvocationResponse{}, fmt.Errorf("agent: sandbox for %s: %w (stderr: %s)",
			request.GroupFolder, runErr, truncate(stderr.String(), 512))
	}

	var response schema.InvocationResponse
	if err := codec.Unmarshal(stdout.Bytes(), &response); err != nil {
		return schema.InvocationResponse{}, fmt.Errorf("agent: decoding sandbox response for %s: %w", request.GroupFolder, err)
	}

	s.logger.Info("agent invocation finished",
		"group", request.GroupFolder,
		"status", response.Status,
		"scheduled", request.Scheduled,
		"elapsed", elapsed)
	return response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
