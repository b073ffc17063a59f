// Package session drives one compiler subprocess to exactly one protocol
// outcome.
//
// A Session spawns the compiler with the listen flag appended, writes the
// opening handshake, then reads length-prefixed frames from stdout until a
// terminal frame arrives: an error bundle (the build failed) or an artifact
// path (the build succeeded). Progress frames and stderr lines are forwarded
// to a caller-supplied sink. A Session is single use.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/techatrix/zigserve/ipc"
	"github.com/techatrix/zigserve/log"
	"github.com/techatrix/zigserve/metrics"
)

// SessionError classifies session failures for the caller.
type SessionError struct {
	// Kind indicates the failure class.
	Kind SessionErrorKind
	// Err is the underlying error.
	Err error
}

// SessionErrorKind classifies session errors.
type SessionErrorKind int

const (
	// SessionErrorSpawn indicates the compiler could not be started.
	SessionErrorSpawn SessionErrorKind = iota
	// SessionErrorProtocol indicates an unknown tag or a malformed frame.
	SessionErrorProtocol
	// SessionErrorUnexpectedExit indicates the compiler exited before a
	// terminal frame.
	SessionErrorUnexpectedExit
)

func (e *SessionError) Error() string {
	return e.Err.Error()
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// IsSpawnError returns true if the error is a compiler launch failure.
func IsSpawnError(err error) bool {
	var sessErr *SessionError
	if errors.As(err, &sessErr) {
		return sessErr.Kind == SessionErrorSpawn
	}
	return false
}

// IsProtocolError returns true if the error is a protocol violation.
func IsProtocolError(err error) bool {
	var sessErr *SessionError
	if errors.As(err, &sessErr) {
		return sessErr.Kind == SessionErrorProtocol
	}
	return false
}

// IsUnexpectedExitError returns true if the compiler exited without a
// terminal frame.
func IsUnexpectedExitError(err error) bool {
	var sessErr *SessionError
	if errors.As(err, &sessErr) {
		return sessErr.Kind == SessionErrorUnexpectedExit
	}
	return false
}

// Compiler abstracts compiler process lifecycle for testing.
type Compiler interface {
	Start(ctx context.Context) error
	Stdout() io.Reader
	Stderr() io.Reader
	Wait() (*CompilerResult, error)
	Kill() error
}

// CompilerFactory creates a Compiler. Used for test injection.
type CompilerFactory func(config *CompilerConfig) Compiler

// ProgressFunc receives progress text. Invocations are serialized and
// fire-and-forget; implementations must not block for long.
type ProgressFunc func(text string)

// Config configures a single session.
type Config struct {
	// ZigPath is the path to the zig executable.
	ZigPath string
	// Args are the build arguments, passed through unmodified.
	Args []string
	// Dir is the working directory for the compiler. Empty means inherit.
	Dir string
	// Progress receives progress frame text and stderr lines.
	// If nil, progress is discarded.
	Progress ProgressFunc
	// Logger is the session logger. If nil, logging is disabled.
	Logger *log.Logger
	// Collector is the metrics collector for this session.
	// If nil, no metrics are recorded (all Collector methods are nil-safe).
	Collector *metrics.Collector
	// CompilerFactory overrides compiler creation (for testing).
	// If nil, uses NewCompilerManager.
	CompilerFactory CompilerFactory
}

// Session drives one compiler subprocess. Not reused after Run returns.
type Session struct {
	config    *Config
	logger    *log.Logger
	startTime time.Time

	progressMu sync.Mutex
}

// New creates a session.
// Returns an error if the configuration is unusable.
func New(config *Config) (*Session, error) {
	if config.ZigPath == "" {
		return nil, errors.New("compiler path must not be empty")
	}

	logger := config.Logger
	if logger == nil {
		logger = log.Nop()
	}

	return &Session{
		config: config,
		logger: logger,
	}, nil
}

// Run executes the session end-to-end and resolves exactly one outcome.
//
// Execution flow:
//  1. Start the compiler (handshake written by Start)
//  2. Forward stderr lines to the progress sink (concurrent)
//  3. Read frames until a terminal frame or EOF
//  4. Reap the process
//
// On a terminal frame the returned Outcome is Success or Failure. All other
// endings return a *SessionError classifying the fault.
func (s *Session) Run(ctx context.Context) (*Outcome, error) {
	s.startTime = time.Now()
	s.config.Collector.SessionStarted()

	s.logger.Info("starting session", map[string]any{
		"compiler": s.config.ZigPath,
		"args":     s.config.Args,
	})

	compilerConfig := &CompilerConfig{
		ZigPath: s.config.ZigPath,
		Args:    s.config.Args,
		Dir:     s.config.Dir,
	}

	var compiler Compiler
	if s.config.CompilerFactory != nil {
		compiler = s.config.CompilerFactory(compilerConfig)
	} else {
		compiler = NewCompilerManager(compilerConfig)
	}

	if err := compiler.Start(ctx); err != nil {
		s.config.Collector.SessionCrashed()
		s.logger.Error("failed to start compiler", map[string]any{
			"error": err.Error(),
		})
		return nil, &SessionError{
			Kind: SessionErrorSpawn,
			Err:  fmt.Errorf("failed to start compiler: %w", err),
		}
	}

	// Stderr carries plain progress text until the protocol supersedes it.
	// Forwarded line-wise on its own goroutine; joined before Wait because
	// exec.Cmd.Wait closes the pipes.
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanner := bufio.NewScanner(compiler.Stderr())
		for scanner.Scan() {
			s.emitProgress(scanner.Text())
		}
	}()

	outcome, runErr := s.readFrames(compiler)

	if runErr != nil {
		// Terminate before reaping so a hung compiler cannot stall the
		// session. Harmless if the process already exited.
		_ = compiler.Kill()
	} else {
		// Terminal frame received. Further output is ignored; kill and
		// drain so Wait cannot block on a full pipe.
		_ = compiler.Kill()
		_, _ = io.Copy(io.Discard, compiler.Stdout())
	}

	<-stderrDone

	result, waitErr := compiler.Wait()
	exitCode := -1
	if waitErr == nil && result != nil {
		exitCode = result.ExitCode
	}

	if runErr != nil {
		var sessErr *SessionError
		if errors.As(runErr, &sessErr) && sessErr.Kind == SessionErrorUnexpectedExit {
			sessErr.Err = fmt.Errorf("%w (exit code %d)", sessErr.Err, exitCode)
		}
		s.config.Collector.SessionCrashed()
		s.logger.Error("session failed", map[string]any{
			"error":     runErr.Error(),
			"exit_code": exitCode,
			"duration":  time.Since(s.startTime).String(),
		})
		return nil, runErr
	}

	outcome.ExitCode = exitCode

	switch outcome.Status {
	case StatusSuccess:
		s.config.Collector.SessionSucceeded()
	case StatusFailure:
		s.config.Collector.SessionFailed()
	}

	s.logger.Info("session completed", map[string]any{
		"outcome":   outcome.Status,
		"exit_code": exitCode,
		"duration":  time.Since(s.startTime).String(),
	})

	return outcome, nil
}

// readFrames reads frames until a terminal frame resolves the outcome.
// Returns a *SessionError on EOF before a terminal frame, on a malformed
// frame, or on an unknown tag.
func (s *Session) readFrames(compiler Compiler) (*Outcome, error) {
	reader := ipc.NewFrameReader(compiler.Stdout())
	outcome := &Outcome{}

	for {
		frame, err := reader.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, &SessionError{
					Kind: SessionErrorUnexpectedExit,
					Err:  errors.New("compiler exited before a terminal frame"),
				}
			}

			var frameErr *ipc.FrameError
			if errors.As(err, &frameErr) && frameErr.Kind == ipc.FrameErrorPartial {
				// Stream ended mid-frame; the process died while writing.
				return nil, &SessionError{
					Kind: SessionErrorUnexpectedExit,
					Err:  fmt.Errorf("stream ended mid-frame: %w", err),
				}
			}

			return nil, &SessionError{
				Kind: SessionErrorProtocol,
				Err:  fmt.Errorf("frame read failed: %w", err),
			}
		}

		s.config.Collector.FrameRead(ipc.HeaderSize + len(frame.Payload))

		switch frame.Tag {
		case ipc.TagZigVersion:
			outcome.ZigVersion = string(frame.Payload)
			s.logger.Debug("compiler version", map[string]any{
				"version": outcome.ZigVersion,
			})

		case ipc.TagProgress:
			s.config.Collector.ProgressMessage()
			s.emitProgress(string(frame.Payload))

		case ipc.TagErrorBundle:
			bundle, err := ipc.DecodeErrorBundle(frame.Payload)
			if err != nil {
				s.config.Collector.DecodeError()
				return nil, &SessionError{
					Kind: SessionErrorProtocol,
					Err:  fmt.Errorf("malformed error bundle frame: %w", err),
				}
			}
			outcome.Status = StatusFailure
			outcome.Bundle = bundle
			outcome.RawBundle = frame.Payload
			return outcome, nil

		case ipc.TagEmitBinPath:
			path, err := ipc.DecodeEmitBinPath(frame.Payload)
			if err != nil {
				s.config.Collector.DecodeError()
				return nil, &SessionError{
					Kind: SessionErrorProtocol,
					Err:  fmt.Errorf("malformed artifact path frame: %w", err),
				}
			}
			outcome.Status = StatusSuccess
			outcome.ArtifactPath = path
			return outcome, nil

		default:
			return nil, &SessionError{
				Kind: SessionErrorProtocol,
				Err:  fmt.Errorf("unknown frame tag %d", frame.Tag),
			}
		}
	}
}

// emitProgress forwards text to the progress sink. Serialized so frame
// progress and stderr lines never interleave mid-call.
func (s *Session) emitProgress(text string) {
	if s.config.Progress == nil {
		return
	}
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	s.config.Progress(text)
}
