// Package supervise manages the target MCP server subprocess: its stdio
// pipes, signal forwarding, and exit-status propagation.
package supervise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

type processCleanup func()

// Supervisor owns the target server child process. The child's stdin and
// stdout become the proxy's downstream byte streams; its stderr passes
// through to the parent's untouched.
type Supervisor struct {
	command []string
	logger  *zap.Logger

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	cleanup processCleanup
}

func New(command []string, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		command: command,
		logger:  logger.Named("supervise"),
	}
}

// Start spawns the child. A spawn failure is fatal to the proxy: callers
// terminate with a non-zero status.
func (s *Supervisor) Start(ctx context.Context) error {
	if len(s.command) == 0 {
		return errors.New("target command is required")
	}

	cmd := exec.CommandContext(ctx, s.command[0], s.command[1:]...)
	cmd.Env = os.Environ()
	cmd.Stderr = os.Stderr
	s.cleanup = setupProcessHandling(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn %q: %w", s.command[0], err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.stdout = stdout
	s.logger.Debug("target server started",
		zap.String("executable", s.command[0]),
		zap.Int("pid", cmd.Process.Pid),
	)
	return nil
}

// Stdin is the write end of the child's input stream.
func (s *Supervisor) Stdin() io.WriteCloser { return s.stdin }

// Stdout is the read end of the child's output stream.
func (s *Supervisor) Stdout() io.ReadCloser { return s.stdout }

// ForwardSignals relays termination signals to the child until ctx ends, so
// killing the proxy never orphans the target server.
func (s *Supervisor) ForwardSignals(ctx context.Context) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		for {
			select {
			case sig := <-signals:
				s.Signal(sig)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Signal forwards one signal to the child.
func (s *Supervisor) Signal(sig os.Signal) {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	if err := s.cmd.Process.Signal(sig); err != nil {
		s.logger.Debug("forward signal failed", zap.String("signal", sig.String()), zap.Error(err))
	}
}

// Wait blocks until the child exits and returns the status the proxy must
// itself exit with: the child's own exit code, or 1 when the child died to
// a signal or never reported a code.
func (s *Supervisor) Wait() int {
	if s.cmd == nil {
		return 1
	}
	err := s.cmd.Wait()
	if s.cleanup != nil {
		s.cleanup()
	}
	return exitCode(err)
}

// Close releases the child's pipes.
func (s *Supervisor) Close() {
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.stdout != nil {
		_ = s.stdout.Close()
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		return 1
	}
	return 1
}
