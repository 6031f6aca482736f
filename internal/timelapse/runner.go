// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package timelapse

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/ManuGH/examcap/internal/procgroup"
)

// Runner executes an external tool and returns its combined output.
type Runner interface {
	Run(ctx context.Context, bin string, args []string) ([]byte, error)
}

// ExecRunner runs tools as child processes in their own process group.
// Cancelling ctx tears the group down.
type ExecRunner struct {
	Grace time.Duration
}

func NewExecRunner(grace time.Duration) *ExecRunner {
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &ExecRunner{Grace: grace}
}

func (r *ExecRunner) Run(ctx context.Context, bin string, args []string) ([]byte, error) {
	cmd := exec.Command(bin, args...)
	procgroup.Set(cmd)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", bin, err)
	}
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		return out.Bytes(), err
	case <-ctx.Done():
		_ = procgroup.Terminate(cmd, waitCh, r.Grace)
		return out.Bytes(), ctx.Err()
	}
}
