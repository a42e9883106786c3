// Package shell runs model-supplied command strings through the host shell.
//
// Commands are executed verbatim, with no escaping, allow-listing or
// sandboxing, under the privileges of the running process.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

var ErrEmptyCommand = errors.New("empty command")

type Shell struct {
	// Timeout bounds a single command; zero waits for it indefinitely.
	Timeout time.Duration
	Stdout  io.Writer
	Stderr  io.Writer
	GOOS    string
}

func New() *Shell {
	return &Shell{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		GOOS:   runtime.GOOS,
	}
}

// Run returns nil only when the shell exits with status zero.
func (s *Shell) Run(ctx context.Context, command string) error {
	if strings.TrimSpace(command) == "" {
		return ErrEmptyCommand
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	name, args := shellArgv(s.goos(), command)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	configureProcess(cmd)
	cmd.Cancel = func() error {
		terminateProcess(cmd)
		return nil
	}

	log.Debug("Running shell command", "shell", name, "command", command)

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("command timeout after %s", s.Timeout)
	}
	if err != nil {
		return fmt.Errorf("run %q: %w", command, err)
	}
	return nil
}

func (s *Shell) goos() string {
	if s.GOOS == "" {
		return runtime.GOOS
	}
	return s.GOOS
}

func shellArgv(goos, command string) (string, []string) {
	if goos == "windows" {
		return "cmd", []string{"/C", command}
	}
	return "sh", []string{"-c", command}
}
