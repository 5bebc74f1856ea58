package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// sessionOptions mirrors the shape of the Options struct in main.go.
type sessionOptions struct {
	Config string `help:"Config file path"`

	Serial        string        `toml:"device.serial" env:"SERIAL"`
	Compression   bool          `toml:"capture.compression" env:"COMPRESSION"`
	CaptureOffset int           `toml:"capture.offset" env:"CAPTURE_OFFSET"`
	FastDelay     time.Duration `toml:"session.fast_delay" env:"FAST_DELAY"`
	WaitTimeout   time.Duration `toml:"session.wait_timeout" env:"WAIT_TIMEOUT"`
	Modules       []string      `toml:"logging.modules" env:"LOGGING_MODULES"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fbmirror.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
[device]
serial = "emulator-5554"

[capture]
compression = true
offset = 12

[session]
fast_delay = "250ms"
wait_timeout = 750

[logging]
modules = ["session", "adb"]
`)

	opts := &sessionOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Serial != "emulator-5554" {
		t.Errorf("Serial = %q, want emulator-5554", opts.Serial)
	}
	if !opts.Compression {
		t.Error("Compression = false, want true")
	}
	if opts.CaptureOffset != 12 {
		t.Errorf("CaptureOffset = %d, want 12", opts.CaptureOffset)
	}
	if opts.FastDelay != 250*time.Millisecond {
		t.Errorf("FastDelay = %v, want 250ms", opts.FastDelay)
	}
	if opts.WaitTimeout != 750*time.Millisecond {
		t.Errorf("WaitTimeout = %v, want 750ms (integers are milliseconds)", opts.WaitTimeout)
	}
	if want := []string{"session", "adb"}; !reflect.DeepEqual(opts.Modules, want) {
		t.Errorf("Modules = %v, want %v", opts.Modules, want)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("FBMIRROR_SERIAL", "env-serial")
	t.Setenv("FBMIRROR_COMPRESSION", "true")
	t.Setenv("FBMIRROR_CAPTURE_OFFSET", "4")
	t.Setenv("FBMIRROR_FAST_DELAY", "1s")
	t.Setenv("FBMIRROR_LOGGING_MODULES", " a , b ")

	opts := &sessionOptions{}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Serial != "env-serial" {
		t.Errorf("Serial = %q, want env-serial", opts.Serial)
	}
	if !opts.Compression {
		t.Error("Compression = false, want true")
	}
	if opts.CaptureOffset != 4 {
		t.Errorf("CaptureOffset = %d, want 4", opts.CaptureOffset)
	}
	if opts.FastDelay != time.Second {
		t.Errorf("FastDelay = %v, want 1s", opts.FastDelay)
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(opts.Modules, want) {
		t.Errorf("Modules = %v, want %v", opts.Modules, want)
	}
}

func TestLoadConfigEnvOverridesToml(t *testing.T) {
	path := writeConfig(t, `
[device]
serial = "toml-serial"

[capture]
offset = 8
`)
	t.Setenv("FBMIRROR_SERIAL", "env-serial")

	opts := &sessionOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Serial != "env-serial" {
		t.Errorf("Serial = %q, want env override", opts.Serial)
	}
	if opts.CaptureOffset != 8 {
		t.Errorf("CaptureOffset = %d, want 8 from TOML", opts.CaptureOffset)
	}
}

func TestLoadConfigCLIWins(t *testing.T) {
	path := writeConfig(t, `
[device]
serial = "toml-serial"
`)
	t.Setenv("FBMIRROR_SERIAL", "env-serial")

	opts := &sessionOptions{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.Serial, "serial", "", "device serial")
	if err := cmd.Flags().Set("serial", "cli-serial"); err != nil {
		t.Fatalf("Set flag: %v", err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.Serial != "cli-serial" {
		t.Errorf("Serial = %q, want CLI value", opts.Serial)
	}
}

func TestLoadConfigInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		toml string
		env  map[string]string
	}{
		{
			name: "bad duration in file",
			toml: "[session]\nfast_delay = \"soon\"\n",
		},
		{
			name: "bad duration in env",
			env:  map[string]string{"FBMIRROR_FAST_DELAY": "soon"},
		},
		{
			name: "bad int in env",
			env:  map[string]string{"FBMIRROR_CAPTURE_OFFSET": "twelve"},
		},
		{
			name: "bad bool in env",
			env:  map[string]string{"FBMIRROR_COMPRESSION": "maybe"},
		},
		{
			name: "invalid toml",
			toml: "[session\ninvalid toml syntax\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &sessionOptions{}
			if tt.toml != "" {
				opts.Config = writeConfig(t, tt.toml)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if err := LoadConfig(opts, nil); err == nil {
				t.Error("LoadConfig should fail")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &sessionOptions{Config: filepath.Join(t.TempDir(), "missing.toml")}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	if err := LoadConfig(sessionOptions{}, nil); err == nil {
		t.Error("LoadConfig should reject a non-pointer")
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"level1": map[string]any{
			"level2": map[string]any{
				"value": "nested_value",
			},
			"simple": "simple_value",
		},
		"root": "root_value",
	}

	tests := []struct {
		path     string
		expected any
	}{
		{"root", "root_value"},
		{"level1.simple", "simple_value"},
		{"level1.level2.value", "nested_value"},
		{"nonexistent", nil},
		{"level1.nonexistent", nil},
		{"root.child", nil},
	}

	for _, test := range tests {
		result := getNestedValue(data, test.path)
		if result != test.expected {
			t.Errorf("getNestedValue(%q) = %v, expected %v", test.path, result, test.expected)
		}
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":          "port",
		"LoggingLevel":  "logging-level",
		"CaptureOffset": "capture-offset",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
format = "json"
session = "warn"
adb = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "debug" || cfg.Format != "json" {
		t.Errorf("got level=%q format=%q", cfg.Level, cfg.Format)
	}
	want := map[string]string{"session": "warn", "adb": "error"}
	if !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	cfg := LoadLoggingConfig("")
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadSessionTuning(t *testing.T) {
	path := writeConfig(t, `
[session]
fast_delay = "150ms"
max_delay = "2s"
backlight_interval = "3s"
paused = true
`)

	tuning, err := LoadSessionTuning(path)
	if err != nil {
		t.Fatalf("LoadSessionTuning failed: %v", err)
	}
	if tuning.FastDelay != 150*time.Millisecond {
		t.Errorf("FastDelay = %v", tuning.FastDelay)
	}
	if tuning.DelayStep != 0 {
		t.Errorf("DelayStep = %v, want unset", tuning.DelayStep)
	}
	if tuning.MaxDelay != 2*time.Second {
		t.Errorf("MaxDelay = %v", tuning.MaxDelay)
	}
	if !tuning.Paused {
		t.Error("Paused = false, want true")
	}

	dt := tuning.DeviceTuning()
	if dt.BacklightPollInterval != 3*time.Second || dt.FastDelay != 150*time.Millisecond {
		t.Errorf("DeviceTuning() = %+v", dt)
	}
}

func TestLoadSessionTuningErrors(t *testing.T) {
	tests := map[string]string{
		"bad duration": "[session]\nfast_delay = \"quick\"\n",
		"negative":     "[session]\nmax_delay = \"-1s\"\n",
		"bad toml":     "[session\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadSessionTuning(writeConfig(t, content)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadSessionTuning(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for a missing file")
	}
}
