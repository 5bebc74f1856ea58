package device

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/fbmirror/internal/events"
	"github.com/smazurov/fbmirror/internal/process"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const modernUsage = `Usage: input [<source>] <command> [<arg>...]
The commands and default sources are:
      text <string> (Default: touchscreen)
      keyevent [--longpress] <key code number or name> ... (Default: keyboard)
      tap <x> <y> (Default: touchscreen)
      swipe <x1> <y1> <x2> <y2> [duration(ms)] (Default: touchscreen)
`

const legacyUsage = `usage: input [text|keyevent]
       input text <string>
       input keyevent <event_code>
`

// fakeDevice simulates an Android device behind the bridge.
type fakeDevice struct {
	mu sync.Mutex

	offline     bool
	usage       string
	capture     []byte
	captureGzip []byte
	// inputNames lists device names, one per line, for event0, event1, ...
	// in order; blank lines are skipped. inputListing, when set, is returned
	// verbatim instead.
	inputNames   string
	inputListing string
	layouts      map[string]string
	backlight    int
	// lights maps an input device index to whether its power key turns the screen on.
	lights map[int]bool
	// rejects maps an input device index whose sendevent fails with a non-zero exit.
	rejects map[int]bool
	// noGzip removes gzip from the device.
	noGzip bool

	waitRunning bool
	waitExit    int
	waitErr     error

	shells [][]string
	hosts  [][]string
	host   func(name string, args []string) (process.Result, error)
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		usage:      modernUsage,
		inputNames: "gpio-keys\nqwerty2\n",
		layouts: map[string]string{
			"gpio-keys": "key 116   POWER      WAKE\nkey 115   VOLUME_UP\n",
			"qwerty2":   "# key 0 POWER\nkey 26    POWER\n",
		},
		backlight: 100,
		lights:    map[int]bool{0: true},
	}
}

func (d *fakeDevice) Shell(args ...string) (process.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.shells = append(d.shells, args)
	if d.offline {
		return process.Result{ExitCode: 1, Stderr: []byte("error: device offline")}, nil
	}

	cmd := strings.Join(args, " ")
	switch {
	case cmd == "input":
		return process.Result{ExitCode: 1, Stdout: []byte(d.usage)}, nil
	case cmd == "command -v gzip":
		if d.noGzip {
			return process.Result{ExitCode: 1}, nil
		}
		return process.Result{Stdout: []byte("/system/bin/gzip\n")}, nil
	case cmd == "screencap | gzip":
		if d.noGzip {
			return process.Result{ExitCode: 127, Stderr: []byte("/system/bin/sh: gzip: not found")}, nil
		}
		return process.Result{Stdout: d.captureGzip}, nil
	case cmd == "screencap":
		return process.Result{Stdout: d.capture}, nil
	case cmd == "grep -H . "+DefaultInputNamesPath:
		return process.Result{Stdout: []byte(d.listing())}, nil
	case cmd == "cat "+DefaultBacklightPath:
		return process.Result{Stdout: []byte(fmt.Sprintf("%d\n", d.backlight))}, nil
	case strings.HasPrefix(cmd, "cat "+DefaultKeyLayoutDir):
		name := strings.TrimSuffix(strings.TrimPrefix(cmd, "cat "+DefaultKeyLayoutDir), DefaultKeyLayoutExt)
		layout, ok := d.layouts[name]
		if !ok {
			return process.Result{ExitCode: 1, Stderr: []byte("No such file or directory")}, nil
		}
		return process.Result{Stdout: []byte(layout)}, nil
	case strings.HasPrefix(cmd, "sendevent"):
		for idx, rejected := range d.rejects {
			if rejected && strings.HasPrefix(cmd, fmt.Sprintf("sendevent %s%d ", inputDevicePrefix, idx)) {
				return process.Result{ExitCode: 1, Stderr: []byte("could not open " + inputDevicePrefix + fmt.Sprint(idx) + ", Permission denied")}, nil
			}
		}
		for idx, lit := range d.lights {
			if lit && strings.HasPrefix(cmd, fmt.Sprintf("sendevent %s%d 1 ", inputDevicePrefix, idx)) {
				d.backlight = 100
			}
		}
		return process.Result{}, nil
	case strings.HasPrefix(cmd, "input "):
		return process.Result{}, nil
	}
	return process.Result{ExitCode: 127, Stderr: []byte("not found")}, nil
}

// listing renders the names the way "grep -H . <glob>" prints them.
func (d *fakeDevice) listing() string {
	if d.inputListing != "" {
		return d.inputListing
	}
	var b strings.Builder
	index := 0
	for _, name := range strings.Split(d.inputNames, "\n") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		fmt.Fprintf(&b, "/sys/class/input/event%d/device/name:%s\n", index, name)
		index++
	}
	return b.String()
}

func (d *fakeDevice) Host(name string, args ...string) (process.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.hosts = append(d.hosts, append([]string{name}, args...))
	if d.host != nil {
		return d.host(name, args)
	}
	return process.Result{ExitCode: 1}, nil
}

func (d *fakeDevice) WaitForDevice() (process.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.waitErr != nil {
		return nil, d.waitErr
	}
	return &fakeHandle{device: d}, nil
}

func (d *fakeDevice) setBacklight(v int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.backlight = v
}

func (d *fakeDevice) setOffline(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offline = v
}

func (d *fakeDevice) setWaitRunning(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitRunning = v
}

// shellCommands returns every shell call joined into one string per call.
func (d *fakeDevice) shellCommands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.shells))
	for i, args := range d.shells {
		out[i] = strings.Join(args, " ")
	}
	return out
}

func (d *fakeDevice) countShell(prefix string) int {
	n := 0
	for _, cmd := range d.shellCommands() {
		if strings.HasPrefix(cmd, prefix) {
			n++
		}
	}
	return n
}

type fakeHandle struct {
	device *fakeDevice
	killed bool
}

func (h *fakeHandle) Wait(time.Duration) (process.Result, error) {
	h.device.mu.Lock()
	defer h.device.mu.Unlock()
	if h.device.waitRunning && !h.killed {
		return process.Result{}, process.ErrStillRunning
	}
	return process.Result{ExitCode: h.device.waitExit}, nil
}

func (h *fakeHandle) Running() bool {
	h.device.mu.Lock()
	defer h.device.mu.Unlock()
	return h.device.waitRunning && !h.killed
}

func (h *fakeHandle) Kill() error {
	h.killed = true
	return nil
}

// recorder is an EventSink that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(typ uint32) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type() == typ {
			n++
		}
	}
	return n
}

func (r *recorder) last(typ uint32) events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type() == typ {
			return r.events[i]
		}
	}
	return nil
}

// waitFor polls until an event of typ has been recorded.
func (r *recorder) waitFor(typ uint32, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if r.count(typ) > 0 {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// rgbxCapture builds a w x h RGBX8888 capture with a distinct color per pixel.
func rgbxCapture(w, h int) []byte {
	raw := EncodeHeader(CaptureHeader{Width: w, Height: h, Format: FormatRGBX8888})
	for i := 0; i < w*h; i++ {
		raw = append(raw, byte(i), byte(i+1), byte(i+2), 0xff)
	}
	return raw
}
