package process

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ErrStillRunning is returned by Handle.Wait when the timeout elapses
// before the command exits. The command keeps running.
var ErrStillRunning = errors.New("process still running")

// Result is the outcome of a finished command.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Success reports whether the command exited with code 0.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Handle tracks one started command.
type Handle interface {
	// Wait blocks until the command exits or timeout elapses.
	// A timeout <= 0 waits until exit.
	Wait(timeout time.Duration) (Result, error)

	// Running reports whether the command has not exited yet.
	Running() bool

	// Kill force-stops the command. Killing an exited command is a no-op.
	Kill() error
}

// Runner starts commands.
type Runner interface {
	Execute(name string, args ...string) (Handle, error)
}

// reapTimeout bounds the wait for a killed command to exit.
const reapTimeout = 5 * time.Second

// Run starts a command and waits up to timeout for it to finish. A command
// still running at the deadline is killed and reaped, and ErrStillRunning is
// returned, so nothing started by Run outlives the call.
func Run(r Runner, timeout time.Duration, name string, args ...string) (Result, error) {
	h, err := r.Execute(name, args...)
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	res, err := h.Wait(timeout)
	if !errors.Is(err, ErrStillRunning) {
		return res, err
	}
	if killErr := h.Kill(); killErr != nil {
		return res, errors.Join(err, killErr)
	}
	if _, waitErr := h.Wait(reapTimeout); waitErr != nil {
		return res, errors.Join(err, fmt.Errorf("%s did not exit after kill: %w", name, waitErr))
	}
	return res, err
}

// Exec implements Runner with os/exec.
type Exec struct {
	logger *slog.Logger
}

// NewExec creates a runner that spawns local processes.
func NewExec(logger *slog.Logger) *Exec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exec{logger: logger}
}

// Execute starts the command and returns without waiting for it.
func (e *Exec) Execute(name string, args ...string) (Handle, error) {
	if name == "" {
		return nil, fmt.Errorf("empty command")
	}

	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	h := &execHandle{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	cmd.Stdout = &h.stdout
	cmd.Stderr = &h.stderr

	if err := cmd.Start(); err != nil {
		e.logger.Debug("Failed to start command", "command", name, "error", err)
		return nil, err
	}

	e.logger.Debug("Command started", "pid", cmd.Process.Pid, "command", name+" "+strings.Join(args, " "))

	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		h.result = Result{
			ExitCode: exitCodeFromError(err),
			Stdout:   h.stdout.Bytes(),
			Stderr:   h.stderr.Bytes(),
		}
		h.mu.Unlock()
		close(h.done)
	}()

	return h, nil
}

type execHandle struct {
	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer
	done   chan struct{}
	mu     sync.Mutex
	result Result
}

func (h *execHandle) Wait(timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		<-h.done
		return h.finished(), nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		return h.finished(), nil
	case <-timer.C:
		return Result{ExitCode: -1}, ErrStillRunning
	}
}

func (h *execHandle) finished() Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

func (h *execHandle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *execHandle) Kill() error {
	if !h.Running() || h.cmd.Process == nil {
		return nil
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
