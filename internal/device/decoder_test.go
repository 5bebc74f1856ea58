package device

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/smazurov/fbmirror/internal/process"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestFrameDecoder_CapturePlain(t *testing.T) {
	d := newFakeDevice()
	d.capture = rgbxCapture(2, 1)

	dec := NewFrameDecoder(d, GzipDecompressor{}, DecoderOptions{}, testLogger())
	if dec.CheckCompression() {
		t.Fatal("compression enabled without being requested")
	}

	raw, err := dec.Capture()
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if !bytes.Equal(raw, d.capture) {
		t.Errorf("Capture() = %v, want %v", raw, d.capture)
	}
}

func TestFrameDecoder_CaptureCompressed(t *testing.T) {
	d := newFakeDevice()
	d.capture = rgbxCapture(2, 2)
	d.captureGzip = gzipBytes(t, d.capture)

	dec := NewFrameDecoder(d, GzipDecompressor{}, DecoderOptions{Compression: true}, testLogger())
	if !dec.CheckCompression() {
		t.Fatal("expected compression to be enabled")
	}

	raw, err := dec.Capture()
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if !bytes.Equal(raw, d.capture) {
		t.Error("decompressed capture does not match the original")
	}
	if got := d.shellCommands(); got[len(got)-1] != "screencap | gzip" {
		t.Errorf("capture command = %q, want gzip pipe", got[len(got)-1])
	}
}

func TestFrameDecoder_CheckCompressionNeedsDeviceGzip(t *testing.T) {
	d := newFakeDevice()
	d.noGzip = true
	d.capture = rgbxCapture(2, 2)

	dec := NewFrameDecoder(d, GzipDecompressor{}, DecoderOptions{Compression: true}, testLogger())
	if dec.CheckCompression() {
		t.Fatal("compression enabled on a device without gzip")
	}

	raw, err := dec.Capture()
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if !bytes.Equal(raw, d.capture) {
		t.Error("uncompressed capture does not match")
	}
	if d.countShell("screencap | gzip") != 0 {
		t.Error("gzip pipe used although the device has no gzip")
	}
}

func TestFrameDecoder_CaptureCorruptGzip(t *testing.T) {
	d := newFakeDevice()
	d.captureGzip = []byte("not gzip at all")

	dec := NewFrameDecoder(d, GzipDecompressor{}, DecoderOptions{Compression: true}, testLogger())
	dec.CheckCompression()

	_, err := dec.Capture()
	if !IsCode(err, ErrCodeDecompressionFailed) {
		t.Errorf("Capture() error = %v, want %s", err, ErrCodeDecompressionFailed)
	}
}

func TestFrameDecoder_CaptureOffsetAndCRLF(t *testing.T) {
	d := newFakeDevice()
	capture := append(EncodeHeader(CaptureHeader{Width: 1, Height: 1, Format: FormatRGBX8888}), '\n', 20, 30, 0xff)
	// Bridge adds two junk bytes and translates a LF inside the payload.
	d.capture = append([]byte{0xaa, 0xbb}, capture...)
	d.capture = bytes.ReplaceAll(d.capture, []byte("\n"), []byte("\r\n"))

	dec := NewFrameDecoder(d, nil, DecoderOptions{CaptureOffset: 2, FixCRLF: true}, testLogger())
	raw, err := dec.Capture()
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if !bytes.Equal(raw, capture) {
		t.Errorf("Capture() = %v, want %v", raw, capture)
	}
}

func TestFrameDecoder_CaptureOffsetTooLarge(t *testing.T) {
	d := newFakeDevice()
	d.capture = []byte{1, 2}

	dec := NewFrameDecoder(d, nil, DecoderOptions{CaptureOffset: 10}, testLogger())
	if _, err := dec.Capture(); !IsCode(err, ErrCodeMalformedCapture) {
		t.Errorf("Capture() error = %v, want %s", err, ErrCodeMalformedCapture)
	}
}

func TestFrameDecoder_CaptureBridgeFailure(t *testing.T) {
	d := newFakeDevice()
	d.offline = true

	dec := NewFrameDecoder(d, nil, DecoderOptions{}, testLogger())
	if _, err := dec.Capture(); !IsCode(err, ErrCodeBridgeUnavailable) {
		t.Errorf("Capture() error = %v, want %s", err, ErrCodeBridgeUnavailable)
	}
}

func TestFrameDecoder_Decode(t *testing.T) {
	dec := NewFrameDecoder(newFakeDevice(), nil, DecoderOptions{}, testLogger())
	h := CaptureHeader{Width: 2, Height: 1, Format: FormatRGBX8888}
	raw := append(EncodeHeader(h), 10, 20, 30, 99, 40, 50, 60, 1)

	frame, err := dec.Decode(raw, h)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if frame.Width != 2 || frame.Height != 1 || frame.Source != FormatRGBX8888 {
		t.Errorf("frame = %dx%d %v", frame.Width, frame.Height, frame.Source)
	}
	if !bytes.Equal(frame.Pix, []byte{10, 20, 30, 40, 50, 60}) {
		t.Errorf("Pix = %v", frame.Pix)
	}
}

func TestExternalDecompressor(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "capture.gz")
	payload := []byte("compressed-bytes")

	d := newFakeDevice()
	d.host = func(name string, args []string) (process.Result, error) {
		switch name {
		case "which":
			return process.Result{Stdout: []byte("/usr/bin/minigzip\n")}, nil
		case "minigzip":
			data, err := os.ReadFile(args[len(args)-1])
			if err != nil {
				return process.Result{ExitCode: 1}, nil
			}
			if !bytes.Equal(data, payload) {
				return process.Result{ExitCode: 1, Stderr: []byte("bad input")}, nil
			}
			return process.Result{Stdout: []byte("raw-bytes")}, nil
		}
		return process.Result{ExitCode: 127}, nil
	}

	x := NewExternalDecompressor(d, "minigzip", scratch)
	if !x.Supported() {
		t.Fatal("Supported() = false, want true")
	}

	out, err := x.Decompress(payload)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if string(out) != "raw-bytes" {
		t.Errorf("Decompress() = %q, want %q", out, "raw-bytes")
	}

	want := []string{"minigzip", "-d", "-c", scratch}
	if got := d.hosts[len(d.hosts)-1]; !reflect.DeepEqual(got, want) {
		t.Errorf("host command = %v, want %v", got, want)
	}

	if _, err := x.Decompress([]byte("other")); !IsCode(err, ErrCodeDecompressionFailed) {
		t.Errorf("Decompress() error = %v, want %s", err, ErrCodeDecompressionFailed)
	}
}

func TestExternalDecompressor_NotInstalled(t *testing.T) {
	d := newFakeDevice()
	x := NewExternalDecompressor(d, "minigzip", filepath.Join(t.TempDir(), "x.gz"))
	if x.Supported() {
		t.Error("Supported() = true when which fails")
	}
}
