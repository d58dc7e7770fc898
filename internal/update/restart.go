package update

import (
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ExecRestarter issues the configured reboot command (typically
// "reboot" or "systemctl reboot").
type ExecRestarter struct {
	command string
	log     *zap.Logger
}

// NewExecRestarter builds a restarter from a whitespace-separated
// command line.
func NewExecRestarter(command string, log *zap.Logger) *ExecRestarter {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecRestarter{command: command, log: log}
}

// Restart runs the reboot command. It does not wait for the reboot to
// take effect; the caller's process ends when the system goes down.
func (r *ExecRestarter) Restart() error {
	fields := strings.Fields(r.command)
	if len(fields) == 0 {
		return fmt.Errorf("empty reboot command")
	}

	r.log.Info("issuing restart", zap.String("command", r.command))
	cmd := exec.Command(fields[0], fields[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start reboot command: %w", err)
	}
	return nil
}
