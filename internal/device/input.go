package device

import (
	"fmt"
	"strconv"
	"strings"
)

// InputVariant is the input protocol a device understands.
type InputVariant int

// Input protocol variants.
const (
	VariantUnknown InputVariant = iota
	// VariantLegacy injects raw events with sendevent.
	VariantLegacy
	// VariantModern uses the "input tap" and "input swipe" commands.
	VariantModern
)

func (v InputVariant) String() string {
	switch v {
	case VariantLegacy:
		return "legacy"
	case VariantModern:
		return "modern"
	default:
		return "unknown"
	}
}

// Raw event constants from linux/input-event-codes.h.
const (
	evSyn     = 0
	evKey     = 1
	evAbs     = 3
	absX      = 0x00
	absY      = 0x01
	absMTPosX = 0x35
	absMTPosY = 0x36
	btnTouch  = 0x14a
)

const inputDevicePrefix = "/dev/input/event"

// legacyTouchDevice is the raw device used for legacy touch events.
// The real touchscreen index is not discovered; event0 is assumed.
const legacyTouchDevice = 0

// capabilityToken in the usage text of "input" marks gesture command support.
const capabilityToken = "swipe"

// Point is a screen coordinate in device pixels.
type Point struct {
	X int `json:"x" example:"100" doc:"Horizontal position in device pixels"`
	Y int `json:"y" example:"200" doc:"Vertical position in device pixels"`
}

// Command is one set of "adb shell" arguments.
type Command []string

// DetectVariant probes the "input" tool and classifies the device.
// A non-zero exit is expected since the tool prints usage without arguments.
func DetectVariant(b Bridge) (InputVariant, error) {
	res, err := b.Shell("input")
	if err != nil {
		return VariantUnknown, newError(ErrCodeBridgeUnavailable, "input capability probe failed", err)
	}
	if strings.Contains(string(res.Stdout), capabilityToken) ||
		strings.Contains(string(res.Stderr), capabilityToken) {
		return VariantModern, nil
	}
	return VariantLegacy, nil
}

// InputSynthesizer converts pointer gestures into device commands.
// It is not safe for concurrent use.
type InputSynthesizer struct {
	variant InputVariant
	pending *Point
}

// NewInputSynthesizer creates a synthesizer for the given variant.
func NewInputSynthesizer(v InputVariant) *InputSynthesizer {
	return &InputSynthesizer{variant: v}
}

// Variant returns the protocol variant commands are produced for.
func (s *InputSynthesizer) Variant() InputVariant {
	return s.variant
}

// Armed reports whether a press is pending.
func (s *InputSynthesizer) Armed() bool {
	return s.pending != nil
}

// BeginPress starts a press at p.
func (s *InputSynthesizer) BeginPress(p Point) []Command {
	s.pending = &p
	if s.variant == VariantLegacy {
		return []Command{legacyTouch(p, true, false)}
	}
	return nil
}

// Move updates the pointer while pressed. Only the legacy variant tracks motion.
func (s *InputSynthesizer) Move(p Point) []Command {
	if s.variant != VariantLegacy || s.pending == nil {
		return nil
	}
	return []Command{legacyTouch(p, false, false)}
}

// EndPress releases the pointer at p and clears the pending press.
// In the modern variant a release within one pixel of the press is a tap,
// anything further is a swipe. A release without a press taps at p.
func (s *InputSynthesizer) EndPress(p Point) []Command {
	start := p
	if s.pending != nil {
		start = *s.pending
	}
	s.pending = nil

	switch s.variant {
	case VariantLegacy:
		return []Command{legacyTouch(p, false, true)}
	case VariantModern:
		if isTap(start, p) {
			return []Command{{"input", "tap", itoa(p.X), itoa(p.Y)}}
		}
		return []Command{{"input", "swipe", itoa(start.X), itoa(start.Y), itoa(p.X), itoa(p.Y)}}
	default:
		return nil
	}
}

// Reset drops any pending press.
func (s *InputSynthesizer) Reset() {
	s.pending = nil
}

// KeyEvent returns the high-level key command for an Android key code.
func KeyEvent(code int) Command {
	return Command{"input", "keyevent", itoa(code)}
}

// PowerKeySequence returns the raw press, release and sync events for a key
// on the given input device, as one shell command.
func PowerKeySequence(deviceIndex, code int) Command {
	return Command{joinEvents(
		rawEvent(deviceIndex, evKey, code, 1),
		rawEvent(deviceIndex, evKey, code, 0),
		rawEvent(deviceIndex, evSyn, 0, 0),
	)}
}

func isTap(a, b Point) bool {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx >= -1 && dx <= 1 && dy >= -1 && dy <= 1
}

// legacyTouch builds the multi-touch and single-touch coordinate updates,
// optionally wrapped by touch down or touch up.
func legacyTouch(p Point, press, release bool) Command {
	dev := legacyTouchDevice
	events := []string{
		rawEvent(dev, evAbs, absMTPosX, p.X),
		rawEvent(dev, evAbs, absMTPosY, p.Y),
	}
	if press {
		events = append(events, rawEvent(dev, evKey, btnTouch, 1))
	}
	events = append(events,
		rawEvent(dev, evAbs, absX, p.X),
		rawEvent(dev, evAbs, absY, p.Y),
		rawEvent(dev, evSyn, 0, 0),
	)
	if release {
		events = append(events,
			rawEvent(dev, evKey, btnTouch, 0),
			rawEvent(dev, evSyn, 0, 0),
		)
	}
	return Command{joinEvents(events...)}
}

func rawEvent(deviceIndex, typ, code, value int) string {
	return fmt.Sprintf("sendevent %s%d %d %d %d", inputDevicePrefix, deviceIndex, typ, code, value)
}

func joinEvents(events ...string) string {
	return strings.Join(events, " ; ")
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
