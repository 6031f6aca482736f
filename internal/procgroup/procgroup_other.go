// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build !unix

package procgroup

import (
	"errors"
	"os"
	"os/exec"
)

var errGone = os.ErrProcessDone

func set(*exec.Cmd) {}

// Only the root process can be signalled here.
func terminate(cmd *exec.Cmd) error {
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return errGone
		}
		// Interrupt is not deliverable on every platform.
		return kill(cmd)
	}
	return nil
}

func kill(cmd *exec.Cmd) error { return cmd.Process.Kill() }
