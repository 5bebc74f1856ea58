// Package cmd holds the one-shot subcommands and the device wiring they
// share with the long-running server.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/fbmirror/internal/adb"
	"github.com/smazurov/fbmirror/internal/device"
	"github.com/smazurov/fbmirror/internal/logging"
	"github.com/smazurov/fbmirror/internal/process"
)

// Compression modes for captures.
const (
	CompressionAuto     = "auto"     // external tool when present, built-in gzip otherwise
	CompressionExternal = "external" // host tool only, e.g. minigzip
	CompressionBuiltin  = "builtin"  // in-process gzip
	CompressionOff      = "off"
)

// Settings are the device-facing options shared by the server and subcommands.
type Settings struct {
	ADBPath        string
	Serial         string
	CommandTimeout time.Duration
	CaptureCommand string
	Compression    string
	DecompressTool string
	ScratchFile    string
	CaptureOffset  int
	FixCRLF        bool
}

// Stack is the wired chain from process runner to power key manager.
type Stack struct {
	Runner  process.Runner
	Bridge  *adb.Bridge
	Decoder *device.FrameDecoder
	Power   *device.PowerKeyManager
}

var newRunner = func() process.Runner {
	return process.NewExec(logging.GetLogger("process"))
}

// NewStack wires a device stack from settings using the real process runner.
func NewStack(s Settings) (*Stack, error) {
	return newStack(newRunner(), s)
}

func newStack(runner process.Runner, s Settings) (*Stack, error) {
	bridge := adb.NewBridge(runner, adb.Options{
		ADBPath:        s.ADBPath,
		Serial:         s.Serial,
		CommandTimeout: s.CommandTimeout,
	}, logging.GetLogger("adb"))

	decompressor, compress, err := selectDecompressor(bridge, s)
	if err != nil {
		return nil, err
	}

	logger := logging.GetLogger("capture")
	decoder := device.NewFrameDecoder(bridge, decompressor, device.DecoderOptions{
		CaptureCommand: s.CaptureCommand,
		Compression:    compress,
		CaptureOffset:  s.CaptureOffset,
		FixCRLF:        s.FixCRLF,
	}, logger)

	power := device.NewPowerKeyManager(bridge, device.DefaultPowerKeyOptions(), logging.GetLogger("power"))

	return &Stack{Runner: runner, Bridge: bridge, Decoder: decoder, Power: power}, nil
}

func selectDecompressor(bridge device.Bridge, s Settings) (device.Decompressor, bool, error) {
	switch s.Compression {
	case CompressionOff:
		return nil, false, nil
	case CompressionBuiltin:
		return device.GzipDecompressor{}, true, nil
	case CompressionExternal:
		return device.NewExternalDecompressor(bridge, s.DecompressTool, s.ScratchFile), true, nil
	case CompressionAuto, "":
		return &fallbackDecompressor{
			primary:  device.NewExternalDecompressor(bridge, s.DecompressTool, s.ScratchFile),
			fallback: device.GzipDecompressor{},
		}, true, nil
	default:
		return nil, false, fmt.Errorf("unknown compression mode %q (want auto, external, builtin or off)", s.Compression)
	}
}

// fallbackDecompressor prefers the external tool and falls back to the
// built-in gzip reader when the tool is missing.
type fallbackDecompressor struct {
	primary  device.Decompressor
	fallback device.Decompressor
	active   device.Decompressor
}

func (f *fallbackDecompressor) Supported() bool {
	f.active = f.fallback
	if f.primary.Supported() {
		f.active = f.primary
	}
	return f.active.Supported()
}

func (f *fallbackDecompressor) Decompress(data []byte) ([]byte, error) {
	if f.active == nil {
		f.Supported()
	}
	return f.active.Decompress(data)
}

// waitForDevice blocks until the device is attached or timeout elapses.
func waitForDevice(b device.Bridge, timeout time.Duration, logger *slog.Logger) error {
	h, err := b.WaitForDevice()
	if err != nil {
		return err
	}
	res, err := h.Wait(timeout)
	if errors.Is(err, process.ErrStillRunning) {
		if killErr := h.Kill(); killErr != nil {
			logger.Debug("Failed to stop device wait", "error", killErr)
		}
		return fmt.Errorf("no device within %s", timeout)
	}
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("wait-for-device exited with code %d: %s", res.ExitCode, res.Stderr)
	}
	return nil
}

// captureFrame probes the capture geometry and returns one decoded frame.
func captureFrame(st *Stack) (device.CaptureHeader, *device.FrameBuffer, error) {
	st.Decoder.CheckCompression()
	raw, err := st.Decoder.Capture()
	if err != nil {
		return device.CaptureHeader{}, nil, err
	}
	header, err := device.DecodeHeader(raw)
	if err != nil {
		return device.CaptureHeader{}, nil, err
	}
	frame, err := st.Decoder.Decode(raw, header)
	if err != nil {
		return header, nil, err
	}
	return header, frame, nil
}
