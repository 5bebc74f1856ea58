package device

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the length of the capture header preceding the pixel payload.
const HeaderSize = 12

// maxDimension bounds width and height so payload sizes cannot overflow.
const maxDimension = 1 << 15

// PixelFormat is the pixel layout of a raw capture.
type PixelFormat int

// Supported capture pixel formats.
const (
	FormatUnknown PixelFormat = iota
	FormatRGB565
	FormatRGB888
	FormatRGBX8888
)

func (f PixelFormat) String() string {
	switch f {
	case FormatRGB565:
		return "RGB565"
	case FormatRGB888:
		return "RGB888"
	case FormatRGBX8888:
		return "RGBX8888"
	default:
		return "unknown"
	}
}

// BytesPerPixel returns the payload size of one pixel, 0 for unknown formats.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGB565:
		return 2
	case FormatRGB888:
		return 3
	case FormatRGBX8888:
		return 4
	default:
		return 0
	}
}

// formatFromCode maps the wire format code to a PixelFormat.
// RGBA_8888 (1) and RGBX_8888 (2) share a layout; alpha is discarded.
func formatFromCode(code uint32) PixelFormat {
	switch code {
	case 1, 2:
		return FormatRGBX8888
	case 3:
		return FormatRGB888
	case 4:
		return FormatRGB565
	default:
		return FormatUnknown
	}
}

// CaptureHeader describes the geometry and pixel format of a capture.
type CaptureHeader struct {
	Width  int
	Height int
	Format PixelFormat
}

// PayloadSize returns the expected pixel payload length in bytes.
func (h CaptureHeader) PayloadSize() int {
	return h.Width * h.Height * h.Format.BytesPerPixel()
}

// FrameBuffer is one decoded frame, always RGB888 and tightly packed.
type FrameBuffer struct {
	Pix    []byte
	Width  int
	Height int
	Source PixelFormat
}

// DecodeHeader parses the big-endian width, height and format words at the
// start of a capture.
func DecodeHeader(b []byte) (CaptureHeader, error) {
	if len(b) < HeaderSize {
		return CaptureHeader{}, newError(ErrCodeMalformedCapture,
			fmt.Sprintf("capture too short for header: %d bytes", len(b)), nil)
	}

	width := binary.BigEndian.Uint32(b[0:4])
	height := binary.BigEndian.Uint32(b[4:8])
	code := binary.BigEndian.Uint32(b[8:12])

	if width == 0 || height == 0 || width > maxDimension || height > maxDimension {
		return CaptureHeader{}, newError(ErrCodeMalformedCapture,
			fmt.Sprintf("invalid dimensions %dx%d", width, height), nil)
	}

	format := formatFromCode(code)
	if format == FormatUnknown {
		return CaptureHeader{}, newError(ErrCodeMalformedCapture,
			fmt.Sprintf("unknown pixel format %d", code), nil)
	}

	return CaptureHeader{Width: int(width), Height: int(height), Format: format}, nil
}

// EncodeHeader is the inverse of DecodeHeader, using the canonical code for each format.
func EncodeHeader(h CaptureHeader) []byte {
	b := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(b[0:4], uint32(h.Width))
	binary.BigEndian.PutUint32(b[4:8], uint32(h.Height))

	var code uint32
	switch h.Format {
	case FormatRGBX8888:
		code = 2
	case FormatRGB888:
		code = 3
	case FormatRGB565:
		code = 4
	}
	binary.BigEndian.PutUint32(b[8:12], code)
	return b
}

// ConvertToRGB888 converts the payload starting at offset into a new packed
// RGB888 buffer of Width*Height*3 bytes.
//
// RGB565 pixels are read as little-endian 16-bit words and expanded to
// 8 bits per channel by bit replication.
func ConvertToRGB888(raw []byte, offset int, h CaptureHeader) ([]byte, error) {
	bpp := h.Format.BytesPerPixel()
	if bpp == 0 {
		return nil, newError(ErrCodeMalformedCapture, "unknown pixel format", nil)
	}

	need := offset + h.PayloadSize()
	if offset < 0 || len(raw) < need {
		return nil, newError(ErrCodeMalformedCapture,
			fmt.Sprintf("invalid frame length %d, require %d", len(raw), need), nil)
	}

	pixels := h.Width * h.Height
	src := raw[offset:need]
	out := make([]byte, pixels*3)

	switch h.Format {
	case FormatRGB888:
		copy(out, src)
	case FormatRGBX8888:
		for i, j := 0, 0; i < pixels; i, j = i+1, j+4 {
			out[i*3] = src[j]
			out[i*3+1] = src[j+1]
			out[i*3+2] = src[j+2]
		}
	case FormatRGB565:
		for i := 0; i < pixels; i++ {
			v := binary.LittleEndian.Uint16(src[i*2:])
			r := byte(v >> 11 & 0x1f)
			g := byte(v >> 5 & 0x3f)
			b := byte(v & 0x1f)
			out[i*3] = r<<3 | r>>2
			out[i*3+1] = g<<2 | g>>4
			out[i*3+2] = b<<3 | b>>2
		}
	}

	return out, nil
}
