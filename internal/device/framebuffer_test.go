package device

import (
	"bytes"
	"testing"
)

func TestDecodeHeader_RoundTrip(t *testing.T) {
	tests := []CaptureHeader{
		{Width: 720, Height: 1280, Format: FormatRGBX8888},
		{Width: 1, Height: 1, Format: FormatRGB888},
		{Width: 480, Height: 800, Format: FormatRGB565},
		{Width: maxDimension, Height: 2, Format: FormatRGB888},
	}

	for _, want := range tests {
		t.Run(want.Format.String(), func(t *testing.T) {
			got, err := DecodeHeader(EncodeHeader(want))
			if err != nil {
				t.Fatalf("DecodeHeader() error = %v", err)
			}
			if got != want {
				t.Errorf("DecodeHeader() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestDecodeHeader_FormatCodes(t *testing.T) {
	tests := []struct {
		code byte
		want PixelFormat
	}{
		{1, FormatRGBX8888},
		{2, FormatRGBX8888},
		{3, FormatRGB888},
		{4, FormatRGB565},
	}

	for _, tt := range tests {
		raw := []byte{0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, tt.code}
		got, err := DecodeHeader(raw)
		if err != nil {
			t.Fatalf("code %d: DecodeHeader() error = %v", tt.code, err)
		}
		if got.Format != tt.want {
			t.Errorf("code %d: format = %v, want %v", tt.code, got.Format, tt.want)
		}
		if got.Width != 2 || got.Height != 3 {
			t.Errorf("code %d: geometry = %dx%d, want 2x3", tt.code, got.Width, got.Height)
		}
	}
}

func TestDecodeHeader_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"short", []byte{0, 0, 0, 1, 0, 0}},
		{"zero width", []byte{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 1}},
		{"zero height", []byte{0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 1}},
		{"unknown format", []byte{0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 9}},
		{"huge width", []byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 1, 0, 0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeHeader(tt.raw)
			if !IsCode(err, ErrCodeMalformedCapture) {
				t.Errorf("DecodeHeader() error = %v, want %s", err, ErrCodeMalformedCapture)
			}
		})
	}
}

func TestConvertToRGB888_RGBX8888(t *testing.T) {
	h := CaptureHeader{Width: 2, Height: 1, Format: FormatRGBX8888}
	raw := append(EncodeHeader(h), 10, 20, 30, 99, 40, 50, 60, 1)

	got, err := ConvertToRGB888(raw, HeaderSize, h)
	if err != nil {
		t.Fatalf("ConvertToRGB888() error = %v", err)
	}
	want := []byte{10, 20, 30, 40, 50, 60}
	if !bytes.Equal(got, want) {
		t.Errorf("ConvertToRGB888() = %v, want %v", got, want)
	}
}

func TestConvertToRGB888_RGB888Verbatim(t *testing.T) {
	h := CaptureHeader{Width: 2, Height: 1, Format: FormatRGB888}
	raw := append(EncodeHeader(h), 1, 2, 3, 4, 5, 6, 0xee, 0xee)

	got, err := ConvertToRGB888(raw, HeaderSize, h)
	if err != nil {
		t.Fatalf("ConvertToRGB888() error = %v", err)
	}
	want := []byte{1, 2, 3, 4, 5, 6}
	if !bytes.Equal(got, want) {
		t.Errorf("ConvertToRGB888() = %v, want %v (trailing bytes must be dropped)", got, want)
	}
}

// RGB565 handling is a chosen conversion: little-endian words expanded by bit replication.
func TestConvertToRGB888_RGB565Expansion(t *testing.T) {
	h := CaptureHeader{Width: 3, Height: 1, Format: FormatRGB565}
	raw := append(EncodeHeader(h),
		0x00, 0xf8, // pure red   0xf800
		0xe0, 0x07, // pure green 0x07e0
		0x1f, 0x00, // pure blue  0x001f
	)

	got, err := ConvertToRGB888(raw, HeaderSize, h)
	if err != nil {
		t.Fatalf("ConvertToRGB888() error = %v", err)
	}
	want := []byte{255, 0, 0, 0, 255, 0, 0, 0, 255}
	if !bytes.Equal(got, want) {
		t.Errorf("ConvertToRGB888() = %v, want %v", got, want)
	}
}

func TestConvertToRGB888_ShortPayload(t *testing.T) {
	h := CaptureHeader{Width: 2, Height: 2, Format: FormatRGBX8888}
	raw := append(EncodeHeader(h), make([]byte, h.PayloadSize()-1)...)

	_, err := ConvertToRGB888(raw, HeaderSize, h)
	if !IsCode(err, ErrCodeMalformedCapture) {
		t.Errorf("ConvertToRGB888() error = %v, want %s", err, ErrCodeMalformedCapture)
	}
}

func TestConvertToRGB888_DoesNotAliasInput(t *testing.T) {
	h := CaptureHeader{Width: 1, Height: 1, Format: FormatRGB888}
	raw := append(EncodeHeader(h), 7, 8, 9)

	got, err := ConvertToRGB888(raw, HeaderSize, h)
	if err != nil {
		t.Fatalf("ConvertToRGB888() error = %v", err)
	}
	raw[HeaderSize] = 0
	if got[0] != 7 {
		t.Error("converted frame shares memory with the capture buffer")
	}
}
