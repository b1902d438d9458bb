//go:build !linux && !darwin

package supervise

import "os/exec"

func setupProcessHandling(cmd *exec.Cmd) processCleanup {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Kill()
	}
	return func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
}
