package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/fbmirror/internal/device"
)

// SessionTuning is the [session] table of the config file, which can be
// changed while the process runs.
type SessionTuning struct {
	FastDelay             time.Duration
	DelayStep             time.Duration
	MaxDelay              time.Duration
	ScreenOffDelay        time.Duration
	BacklightPollInterval time.Duration
	Paused                bool
}

type rawSessionTuning struct {
	Session struct {
		FastDelay         string `toml:"fast_delay"`
		DelayStep         string `toml:"delay_step"`
		MaxDelay          string `toml:"max_delay"`
		ScreenOffDelay    string `toml:"screen_off_delay"`
		BacklightInterval string `toml:"backlight_interval"`
		Paused            bool   `toml:"paused"`
	} `toml:"session"`
}

// LoadSessionTuning reads the [session] table from path.
// Durations are Go duration strings; empty values stay zero.
func LoadSessionTuning(path string) (SessionTuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SessionTuning{}, err
	}

	var raw rawSessionTuning
	if err := toml.Unmarshal(data, &raw); err != nil {
		return SessionTuning{}, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	var t SessionTuning
	fields := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"session.fast_delay", raw.Session.FastDelay, &t.FastDelay},
		{"session.delay_step", raw.Session.DelayStep, &t.DelayStep},
		{"session.max_delay", raw.Session.MaxDelay, &t.MaxDelay},
		{"session.screen_off_delay", raw.Session.ScreenOffDelay, &t.ScreenOffDelay},
		{"session.backlight_interval", raw.Session.BacklightInterval, &t.BacklightPollInterval},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return SessionTuning{}, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		if d < 0 {
			return SessionTuning{}, fmt.Errorf("invalid %s: negative duration", f.key)
		}
		*f.dst = d
	}
	t.Paused = raw.Session.Paused

	return t, nil
}

// DeviceTuning converts the cadence part of t for a running session.
func (t SessionTuning) DeviceTuning() device.Tuning {
	return device.Tuning{
		FastDelay:             t.FastDelay,
		DelayStep:             t.DelayStep,
		MaxDelay:              t.MaxDelay,
		ScreenOffDelay:        t.ScreenOffDelay,
		BacklightPollInterval: t.BacklightPollInterval,
	}
}
