package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"

	"github.com/techatrix/zigserve/ipc"
)

// listenFlag tells the compiler to serve diagnostics over its standard
// streams instead of printing them.
const listenFlag = "--listen=-"

// CompilerConfig configures a compiler subprocess.
type CompilerConfig struct {
	// ZigPath is the path to the zig executable.
	ZigPath string
	// Args are the build arguments, passed through unmodified before
	// the listen flag.
	Args []string
	// Dir is the working directory. Empty means inherit.
	Dir string
}

// CompilerResult represents the result of a compiler process.
type CompilerResult struct {
	// ExitCode is the process exit code.
	ExitCode int
}

// CompilerManager manages compiler process lifecycle.
type CompilerManager struct {
	config *CompilerConfig
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
}

// NewCompilerManager creates a new compiler manager.
func NewCompilerManager(config *CompilerConfig) *CompilerManager {
	return &CompilerManager{
		config: config,
	}
}

// Start starts the compiler process.
// Stdout carries protocol frames. Stderr carries plain progress text.
// The 16-byte handshake is written to stdin immediately and stdin is
// closed, telling the server to run once and stop listening.
func (m *CompilerManager) Start(ctx context.Context) error {
	args := make([]string, 0, len(m.config.Args)+1)
	args = append(args, m.config.Args...)
	args = append(args, listenFlag)

	m.cmd = exec.CommandContext(ctx, m.config.ZigPath, args...)
	m.cmd.Dir = m.config.Dir

	stdin, err := m.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdout, err := m.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	m.stdout = stdout

	stderr, err := m.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	m.stderr = stderr

	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start compiler: %w", err)
	}

	if err := ipc.WriteHandshake(stdin); err != nil {
		_ = m.Kill()
		return fmt.Errorf("failed to write handshake: %w", err)
	}

	if err := stdin.Close(); err != nil {
		_ = m.Kill()
		return fmt.Errorf("failed to close stdin: %w", err)
	}

	return nil
}

// Stdout returns the stdout reader for frame reading.
func (m *CompilerManager) Stdout() io.Reader {
	return m.stdout
}

// Stderr returns the stderr reader for progress capture.
func (m *CompilerManager) Stderr() io.Reader {
	return m.stderr
}

// Wait waits for the compiler to exit and returns the result.
// Must be called after Start, and only after both pipes have been
// drained: exec.Cmd.Wait closes the pipes.
func (m *CompilerManager) Wait() (*CompilerResult, error) {
	if m.cmd == nil {
		return nil, errors.New("compiler not started")
	}

	err := m.cmd.Wait()

	result := &CompilerResult{}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				result.ExitCode = status.ExitStatus()
			} else {
				result.ExitCode = -1
			}
		} else {
			return nil, fmt.Errorf("compiler wait failed: %w", err)
		}
	}

	return result, nil
}

// Kill terminates the compiler process.
func (m *CompilerManager) Kill() error {
	if m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Kill()
	}
	return nil
}
