package device

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Decompressor turns a compressed capture back into raw bytes.
type Decompressor interface {
	// Supported reports whether compressed captures can be handled on this host.
	Supported() bool
	Decompress(data []byte) ([]byte, error)
}

// ExternalDecompressor pipes captures through a host-side gzip-compatible tool
// invoked as "<tool> -d -c <scratch-path>".
type ExternalDecompressor struct {
	bridge  Bridge
	tool    string
	scratch string
}

// NewExternalDecompressor creates a decompressor that runs tool on the host.
// An empty scratch path uses a file in the OS temp directory.
func NewExternalDecompressor(bridge Bridge, tool, scratch string) *ExternalDecompressor {
	if tool == "" {
		tool = "minigzip"
	}
	if scratch == "" {
		scratch = filepath.Join(os.TempDir(), "fbmirror.gz")
	}
	return &ExternalDecompressor{bridge: bridge, tool: tool, scratch: scratch}
}

// Supported checks that the tool can be found on the host.
func (d *ExternalDecompressor) Supported() bool {
	res, err := d.bridge.Host("which", d.tool)
	if err != nil || !res.Success() {
		return false
	}
	return strings.Contains(string(res.Stdout), d.tool)
}

// Decompress writes data to the scratch file and returns the tool's stdout.
func (d *ExternalDecompressor) Decompress(data []byte) ([]byte, error) {
	if err := os.WriteFile(d.scratch, data, 0o600); err != nil {
		return nil, newError(ErrCodeDecompressionFailed, "failed to write scratch file", err)
	}

	res, err := d.bridge.Host(d.tool, "-d", "-c", d.scratch)
	if err != nil {
		return nil, newError(ErrCodeDecompressionFailed, "failed to run "+d.tool, err)
	}
	if !res.Success() {
		return nil, newError(ErrCodeDecompressionFailed, d.tool+" failed", exitError(res))
	}
	return res.Stdout, nil
}

// GzipDecompressor decompresses in process.
type GzipDecompressor struct{}

// Supported always returns true.
func (GzipDecompressor) Supported() bool { return true }

// Decompress inflates a gzip stream.
func (GzipDecompressor) Decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, newError(ErrCodeDecompressionFailed, "invalid gzip stream", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, newError(ErrCodeDecompressionFailed, "failed to inflate capture", err)
	}
	return out, nil
}
