package device

import (
	"bytes"
	"fmt"
	"log/slog"
)

// DecoderOptions configures how captures are requested and unpacked.
type DecoderOptions struct {
	CaptureCommand string // remote capture utility, "screencap" when empty
	Compression    bool   // compress on the device when the host can decompress
	CaptureOffset  int    // leading bytes dropped from every capture
	FixCRLF        bool   // undo "\n" to "\r\n" translation by the bridge
}

// FrameDecoder requests raw captures through the bridge and decodes them.
type FrameDecoder struct {
	bridge       Bridge
	decompressor Decompressor
	opts         DecoderOptions
	compress     bool
	logger       *slog.Logger
}

// NewFrameDecoder creates a decoder. decompressor may be nil when compression is disabled.
func NewFrameDecoder(bridge Bridge, decompressor Decompressor, opts DecoderOptions, logger *slog.Logger) *FrameDecoder {
	if opts.CaptureCommand == "" {
		opts.CaptureCommand = "screencap"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameDecoder{
		bridge:       bridge,
		decompressor: decompressor,
		opts:         opts,
		logger:       logger,
	}
}

// CheckCompression decides whether captures are compressed for this connection.
// Both sides must cooperate: the host needs a working decompressor and the
// device needs a gzip binary to pipe the capture through.
func (d *FrameDecoder) CheckCompression() bool {
	d.compress = d.opts.Compression && d.decompressor != nil &&
		d.decompressor.Supported() && d.deviceHasGzip()
	d.logger.Debug("Compressed data transfer", "enabled", d.compress)
	return d.compress
}

func (d *FrameDecoder) deviceHasGzip() bool {
	res, err := d.bridge.Shell("command", "-v", "gzip")
	if err != nil || !res.Success() || len(bytes.TrimSpace(res.Stdout)) == 0 {
		d.logger.Info("Device has no gzip, capturing uncompressed", "error", err, "exit_code", res.ExitCode)
		return false
	}
	return true
}

// Compressed reports the result of the last CheckCompression.
func (d *FrameDecoder) Compressed() bool {
	return d.compress
}

// Capture runs the capture utility and returns the raw, decompressed bytes
// with the configured offset already removed.
func (d *FrameDecoder) Capture() ([]byte, error) {
	args := []string{d.opts.CaptureCommand}
	if d.compress {
		args = append(args, "|", "gzip")
	}

	res, err := shellOK(d.bridge, "capture", args...)
	if err != nil {
		return nil, err
	}

	raw := res.Stdout
	if d.opts.FixCRLF {
		raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	}

	if d.compress {
		raw, err = d.decompressor.Decompress(raw)
		if err != nil {
			return nil, err
		}
	}

	if off := d.opts.CaptureOffset; off > 0 {
		if off > len(raw) {
			return nil, newError(ErrCodeMalformedCapture,
				fmt.Sprintf("capture of %d bytes shorter than offset %d", len(raw), off), nil)
		}
		raw = raw[off:]
	}

	return raw, nil
}

// Decode converts a capture into a frame using a header obtained at probe time.
func (d *FrameDecoder) Decode(raw []byte, h CaptureHeader) (*FrameBuffer, error) {
	pix, err := ConvertToRGB888(raw, HeaderSize, h)
	if err != nil {
		return nil, err
	}
	return &FrameBuffer{Pix: pix, Width: h.Width, Height: h.Height, Source: h.Format}, nil
}
