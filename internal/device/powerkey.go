package device

import (
	"bytes"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Default device paths used for power key discovery and backlight polling.
const (
	DefaultInputNamesPath = "/sys/class/input/event*/device/name"
	DefaultKeyLayoutDir   = "/system/usr/keylayout/"
	DefaultKeyLayoutExt   = ".kl"
	DefaultBacklightPath  = "/sys/class/leds/lcd-backlight/brightness"
)

// PowerKeyOptions configures discovery and the wake sequence.
type PowerKeyOptions struct {
	InputNamesPath string
	KeyLayoutDir   string
	KeyLayoutExt   string
	BacklightPath  string
	PollAttempts   int           // backlight reads per candidate after the key press
	PollInterval   time.Duration // sleep between reads
}

// DefaultPowerKeyOptions returns the stock Android paths and a 5 x 300ms poll.
func DefaultPowerKeyOptions() PowerKeyOptions {
	return PowerKeyOptions{
		InputNamesPath: DefaultInputNamesPath,
		KeyLayoutDir:   DefaultKeyLayoutDir,
		KeyLayoutExt:   DefaultKeyLayoutExt,
		BacklightPath:  DefaultBacklightPath,
		PollAttempts:   5,
		PollInterval:   300 * time.Millisecond,
	}
}

// DeviceKeyInfo is one raw input device able to send a power key.
type DeviceKeyInfo struct {
	InputDeviceIndex int    `json:"input_device_index" example:"2" doc:"Index N of /dev/input/eventN"`
	KeyLayoutName    string `json:"key_layout_name" example:"gpio-keys" doc:"Key layout file name"`
	PowerKeyCode     int    `json:"power_key_code" example:"116" doc:"Scan code of the power key"`
	WakeSucceeded    bool   `json:"wake_succeeded" doc:"Whether the last wake through this device lit the screen"`
}

// PowerKeyManager finds power keys on the device and uses them to wake it.
// It is owned by a single goroutine.
type PowerKeyManager struct {
	bridge     Bridge
	opts       PowerKeyOptions
	candidates []DeviceKeyInfo
	sleep      func(time.Duration)
	logger     *slog.Logger
}

// NewPowerKeyManager creates a manager. Zero option fields take the defaults.
func NewPowerKeyManager(bridge Bridge, opts PowerKeyOptions, logger *slog.Logger) *PowerKeyManager {
	def := DefaultPowerKeyOptions()
	if opts.InputNamesPath == "" {
		opts.InputNamesPath = def.InputNamesPath
	}
	if opts.KeyLayoutDir == "" {
		opts.KeyLayoutDir = def.KeyLayoutDir
	}
	if opts.KeyLayoutExt == "" {
		opts.KeyLayoutExt = def.KeyLayoutExt
	}
	if opts.BacklightPath == "" {
		opts.BacklightPath = def.BacklightPath
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = def.PollAttempts
	}
	if opts.PollInterval < 0 {
		opts.PollInterval = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PowerKeyManager{
		bridge: bridge,
		opts:   opts,
		sleep:  time.Sleep,
		logger: logger,
	}
}

// Candidates returns a copy of the current power key candidates.
func (m *PowerKeyManager) Candidates() []DeviceKeyInfo {
	out := make([]DeviceKeyInfo, len(m.candidates))
	copy(out, m.candidates)
	return out
}

// Reset forgets all candidates.
func (m *PowerKeyManager) Reset() {
	m.candidates = nil
}

// Discover lists raw input devices and keeps those whose key layout maps a
// POWER key. Devices whose layout cannot be read are skipped. A failing
// listing is returned as BRIDGE_UNAVAILABLE.
//
// Names are listed with "grep -H" so every line carries its sysfs path; the
// glob expands in lexical order (event10 sorts before event2), so the device
// index is taken from the path rather than from the line position.
func (m *PowerKeyManager) Discover() error {
	m.candidates = nil

	res, err := m.bridge.Shell("grep", "-H", ".", m.opts.InputNamesPath)
	if err != nil {
		return newError(ErrCodeBridgeUnavailable, "input device listing failed", err)
	}
	// grep exits 2 when one node is unreadable but still prints the others
	if !res.Success() && len(bytes.TrimSpace(res.Stdout)) == 0 {
		return newError(ErrCodeBridgeUnavailable, "input device listing failed", exitError(res))
	}

	var found []DeviceKeyInfo
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		path, name, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		index, ok := eventIndex(path)
		if !ok || name == "" {
			m.logger.Debug("Skipping input listing line", "line", line)
			continue
		}
		layout := keyLayoutName(name)

		code, err := m.powerKeyCode(layout)
		switch {
		case err != nil:
			m.logger.Debug("Skipping input device", "name", name, "error", err)
		case code == 0:
			m.logger.Debug("No POWER key in layout", "layout", layout)
		default:
			m.logger.Debug("Found POWER key", "layout", layout, "code", code, "index", index)
			found = append(found, DeviceKeyInfo{
				InputDeviceIndex: index,
				KeyLayoutName:    layout,
				PowerKeyCode:     code,
			})
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].InputDeviceIndex < found[j].InputDeviceIndex })
	m.candidates = found
	return nil
}

// eventIndex extracts N from the "eventN" element of a sysfs input path.
func eventIndex(path string) (int, bool) {
	for _, elem := range strings.Split(path, "/") {
		digits, ok := strings.CutPrefix(elem, "event")
		if !ok || digits == "" {
			continue
		}
		if n, err := strconv.Atoi(digits); err == nil && n >= 0 {
			return n, true
		}
	}
	return 0, false
}

// powerKeyCode reads a key layout descriptor and returns the POWER scan code, 0 when absent.
func (m *PowerKeyManager) powerKeyCode(layout string) (int, error) {
	path := m.opts.KeyLayoutDir + layout + m.opts.KeyLayoutExt
	res, err := m.bridge.Shell("cat", path)
	if err != nil || !res.Success() {
		cause := err
		if cause == nil {
			cause = exitError(res)
		}
		return 0, newError(ErrCodeKeyLayoutUnreadable, path, cause)
	}
	return ParsePowerKeyCode(string(res.Stdout)), nil
}

// ParsePowerKeyCode scans a key layout descriptor for a "key <code> POWER"
// line and returns the code, or 0 when there is none.
func ParsePowerKeyCode(layout string) int {
	for _, line := range strings.Split(layout, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") || !strings.Contains(line, "POWER") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "key" {
			continue
		}
		code, err := strconv.Atoi(fields[1])
		if err != nil || code <= 0 {
			continue
		}
		return code
	}
	return 0
}

// keyLayoutName maps an input device name to its layout file name.
func keyLayoutName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// Brightness reads the backlight level. Unparsable output counts as off.
func (m *PowerKeyManager) Brightness() (int, error) {
	res, err := shellOK(m.bridge, "backlight read", "cat", m.opts.BacklightPath)
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(string(res.Stdout))
	level, err := strconv.Atoi(text)
	if err != nil {
		m.logger.Warn("Unparsable backlight value", "value", text)
		return 0, nil
	}
	return level, nil
}

// Wake presses the power key of each candidate in turn until the backlight
// comes on. Candidates whose press is rejected or that fail to light the
// screen are removed. The sweep stops at the first success so a lit screen
// is not toggled back off. Only a bridge transport failure aborts the sweep.
// Returns the observed brightness, or WAKE_INEFFECTIVE when nothing worked.
func (m *PowerKeyManager) Wake() (int, error) {
	if len(m.candidates) == 0 {
		m.logger.Debug("Power key info not found, rediscovering")
		if err := m.Discover(); err != nil {
			return 0, err
		}
	}
	if len(m.candidates) == 0 {
		return 0, newError(ErrCodeWakeIneffective, "no power key found", nil)
	}

	kept := make([]DeviceKeyInfo, 0, len(m.candidates))
	level := 0
	for _, c := range m.candidates {
		if level > 0 {
			kept = append(kept, c)
			continue
		}

		m.logger.Debug("Waking screen", "layout", c.KeyLayoutName, "code", c.PowerKeyCode, "index", c.InputDeviceIndex)
		res, err := m.bridge.Shell(PowerKeySequence(c.InputDeviceIndex, c.PowerKeyCode)...)
		if err != nil {
			return 0, newError(ErrCodeBridgeUnavailable, "power key failed", err)
		}
		if !res.Success() {
			m.logger.Warn("Power key press rejected, disabling",
				"layout", c.KeyLayoutName, "index", c.InputDeviceIndex, "error", exitError(res))
			continue
		}

		lit, err := m.pollBacklight()
		if err != nil {
			return 0, err
		}
		if lit > 0 {
			level = lit
			c.WakeSucceeded = true
			kept = append(kept, c)
			continue
		}

		m.logger.Info("Disabling power key", "layout", c.KeyLayoutName, "index", c.InputDeviceIndex)
	}
	m.candidates = kept

	if level == 0 {
		return 0, newError(ErrCodeWakeIneffective, "screen stayed off after power key", nil)
	}
	return level, nil
}

func (m *PowerKeyManager) pollBacklight() (int, error) {
	for i := 0; i < m.opts.PollAttempts; i++ {
		level, err := m.Brightness()
		if err != nil {
			return 0, err
		}
		if level > 0 {
			return level, nil
		}
		if i < m.opts.PollAttempts-1 {
			m.sleep(m.opts.PollInterval)
		}
	}
	return 0, nil
}
