// Package adb builds the command-line conventions used to reach an Android
// device through the adb bridge: shell invocations, wait-for-device and
// host-side helper commands.
package adb

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/smazurov/fbmirror/internal/process"
)

// DefaultCommandTimeout bounds synchronous bridge calls.
const DefaultCommandTimeout = 30 * time.Second

// Options configures a Bridge.
type Options struct {
	ADBPath        string        // path to the adb executable, "adb" when empty
	Serial         string        // device serial, empty selects the only attached device
	CommandTimeout time.Duration // bounded wait for synchronous calls
}

// Bridge executes commands against one device through adb.
type Bridge struct {
	runner  process.Runner
	adbPath string
	serial  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewBridge creates a bridge on top of the given runner.
func NewBridge(runner process.Runner, opts Options, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	adbPath := opts.ADBPath
	if adbPath == "" {
		adbPath = "adb"
	}
	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Bridge{
		runner:  runner,
		adbPath: adbPath,
		serial:  opts.Serial,
		timeout: timeout,
		logger:  logger,
	}
}

// Serial returns the configured device serial.
func (b *Bridge) Serial() string {
	return b.serial
}

// Shell runs "adb shell <args...>" and waits for it to finish.
// A non-zero exit is not an error; callers inspect Result.
func (b *Bridge) Shell(args ...string) (process.Result, error) {
	return b.adb(append([]string{"shell"}, args...)...)
}

// WaitForDevice starts "adb wait-for-device" without waiting for it.
func (b *Bridge) WaitForDevice() (process.Handle, error) {
	return b.runner.Execute(b.adbPath, b.withSerial("wait-for-device")...)
}

// Host runs a command on the host side, outside the bridge.
func (b *Bridge) Host(name string, args ...string) (process.Result, error) {
	b.logger.Debug("Executing on host", "command", name, "args", strings.Join(args, " "))
	return b.run(name, args...)
}

func (b *Bridge) adb(args ...string) (process.Result, error) {
	full := b.withSerial(args...)
	b.logger.Debug("Executing on device", "serial", b.serial, "args", strings.Join(args, " "))
	return b.run(b.adbPath, full...)
}

// run executes one synchronous command. A command that outlives the timeout
// is killed and reaped by process.Run, so at most one bridge command is in
// flight at a time.
func (b *Bridge) run(name string, args ...string) (process.Result, error) {
	res, err := process.Run(b.runner, b.timeout, name, args...)
	if errors.Is(err, process.ErrStillRunning) {
		b.logger.Warn("Command timed out and was killed",
			"command", name, "args", strings.Join(args, " "), "timeout", b.timeout, "error", err)
	}
	return res, err
}
