// Package selfexec re-executes the running binary in place, used to
// implement the control bus's Restart request: the supervisor runs its
// ordinary shutdown-reset sequence first, then this package takes over the
// process image so no supervising wrapper or systemd Restart= policy is
// required for a clean self-restart.
package selfexec

import (
	"os"
	"syscall"
)

// ReExec replaces the current process image with a fresh copy of the same
// binary, the same arguments and the same environment. On success it never
// returns. On failure (e.g. the platform doesn't support exec, or the
// executable can't be located) it returns an error and the caller is still
// running the old process image.
func ReExec() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	return syscall.Exec(exe, os.Args, os.Environ()) //nolint:gosec // G204: re-executing our own resolved binary path
}
