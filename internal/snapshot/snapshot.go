// Package snapshot turns decoded framebuffers into encoded images.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/smazurov/fbmirror/internal/device"
)

// Format is an output image encoding.
type Format string

// Supported output encodings.
const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// DefaultJPEGQuality is used when Options.Quality is zero.
const DefaultJPEGQuality = 85

// ErrNoFrame is returned when there is no frame to encode.
var ErrNoFrame = errors.New("no frame available")

// Options controls snapshot encoding.
type Options struct {
	Format Format
	// MaxWidth bounds the output width; zero keeps the native size.
	// Frames narrower than MaxWidth are never upscaled.
	MaxWidth int
	Quality  int
}

// ParseFormat accepts png, jpeg and jpg (case-insensitive). Empty means png.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Extension returns the conventional file extension including the dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// FormatFromPath picks a format from a file name extension, defaulting to png.
func FormatFromPath(path string) Format {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") {
		return FormatJPEG
	}
	return FormatPNG
}

// ToImage wraps packed RGB888 pixels in an opaque NRGBA image.
func ToImage(fb *device.FrameBuffer) (*image.NRGBA, error) {
	if fb == nil {
		return nil, ErrNoFrame
	}
	if fb.Width <= 0 || fb.Height <= 0 {
		return nil, fmt.Errorf("invalid frame geometry %dx%d", fb.Width, fb.Height)
	}
	if want := fb.Width * fb.Height * 3; len(fb.Pix) < want {
		return nil, fmt.Errorf("frame holds %d bytes, need %d for %dx%d", len(fb.Pix), want, fb.Width, fb.Height)
	}

	img := image.NewNRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	src, dst := fb.Pix, img.Pix
	for i, j := 0, 0; j < len(dst); i, j = i+3, j+4 {
		dst[j] = src[i]
		dst[j+1] = src[i+1]
		dst[j+2] = src[i+2]
		dst[j+3] = 0xff
	}
	return img, nil
}

// Encode writes fb to w using opts.
func Encode(w io.Writer, fb *device.FrameBuffer, opts Options) error {
	img, err := ToImage(fb)
	if err != nil {
		return err
	}

	var out image.Image = img
	if opts.MaxWidth > 0 && fb.Width > opts.MaxWidth {
		out = imaging.Resize(img, opts.MaxWidth, 0, imaging.Lanczos)
	}

	switch opts.Format {
	case FormatJPEG:
		quality := opts.Quality
		if quality <= 0 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return imaging.Encode(w, out, imaging.JPEG, imaging.JPEGQuality(quality))
	case FormatPNG, "":
		return imaging.Encode(w, out, imaging.PNG)
	default:
		return fmt.Errorf("unsupported image format %q", opts.Format)
	}
}

// EncodeBytes is Encode into a fresh byte slice.
func EncodeBytes(fb *device.FrameBuffer, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, fb, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save encodes fb into the file at path, choosing the format from its extension.
func Save(path string, fb *device.FrameBuffer, maxWidth int) error {
	img, err := ToImage(fb)
	if err != nil {
		return err
	}
	if maxWidth > 0 && fb.Width > maxWidth {
		return imaging.Save(imaging.Resize(img, maxWidth, 0, imaging.Lanczos), path, imaging.JPEGQuality(DefaultJPEGQuality))
	}
	return imaging.Save(img, path, imaging.JPEGQuality(DefaultJPEGQuality))
}
