//go:build !darwin && !linux && !windows

package automation

import "context"

type otherController struct {
	unsupported
	shell *Shell
}

// New returns the controller for the running platform. Only the shell is
// available here.
func New() Controller {
	return &otherController{shell: PosixShell("/bin/sh")}
}

func (c *otherController) Shell(ctx context.Context, command string) (string, error) {
	return c.shell.Run(ctx, command)
}
