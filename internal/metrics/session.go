package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	capturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fbmirror",
		Subsystem: "session",
		Name:      "captures_total",
		Help:      "Framebuffer captures by result",
	}, []string{"serial", "result"})

	captureDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fbmirror",
		Subsystem: "session",
		Name:      "capture_duration_seconds",
		Help:      "Time spent capturing and decoding one frame",
		Buckets:   []float64{.05, .1, .2, .3, .5, .75, 1, 2, 5},
	}, []string{"serial"})

	gesturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fbmirror",
		Subsystem: "input",
		Name:      "commands_total",
		Help:      "Input commands sent to the device by kind",
	}, []string{"serial", "kind"})

	wakeAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fbmirror",
		Subsystem: "power",
		Name:      "wake_attempts_total",
		Help:      "Wake sequences by result",
	}, []string{"serial", "result"})

	disconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fbmirror",
		Subsystem: "session",
		Name:      "disconnects_total",
		Help:      "Transitions into the disconnected state",
	}, []string{"serial"})

	connectionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fbmirror",
		Subsystem: "session",
		Name:      "connection_state",
		Help:      "Connectivity state (0 disconnected, 1 probing, 2 connected)",
	}, []string{"serial"})

	screenOn = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fbmirror",
		Subsystem: "session",
		Name:      "screen_on",
		Help:      "Whether the device backlight is on",
	}, []string{"serial"})

	captureDelay = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fbmirror",
		Subsystem: "session",
		Name:      "capture_delay_seconds",
		Help:      "Current delay between captures",
	}, []string{"serial"})
)

// RecordCapture records one capture cycle.
func RecordCapture(serial string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	capturesTotal.WithLabelValues(serial, result).Inc()
	if err == nil {
		captureDuration.WithLabelValues(serial).Observe(d.Seconds())
	}
}

// RecordInput counts an input command of the given kind (tap, swipe, key, event).
func RecordInput(serial, kind string) {
	gesturesTotal.WithLabelValues(serial, kind).Inc()
}

// RecordWake counts a wake sequence outcome.
func RecordWake(serial string, ok bool) {
	result := "ok"
	if !ok {
		result = "ineffective"
	}
	wakeAttemptsTotal.WithLabelValues(serial, result).Inc()
}

// RecordDisconnect counts a transition into the disconnected state.
func RecordDisconnect(serial string) {
	disconnectsTotal.WithLabelValues(serial).Inc()
}

// SetConnectionState sets the numeric connectivity state for a device.
func SetConnectionState(serial string, state int) {
	connectionState.WithLabelValues(serial).Set(float64(state))
}

// SetScreenOn sets the backlight state for a device.
func SetScreenOn(serial string, on bool) {
	v := 0.0
	if on {
		v = 1
	}
	screenOn.WithLabelValues(serial).Set(v)
}

// SetCaptureDelay sets the current inter-capture delay for a device.
func SetCaptureDelay(serial string, d time.Duration) {
	captureDelay.WithLabelValues(serial).Set(d.Seconds())
}

// DeleteSessionMetrics removes all gauges for a device.
func DeleteSessionMetrics(serial string) {
	connectionState.DeleteLabelValues(serial)
	screenOn.DeleteLabelValues(serial)
	captureDelay.DeleteLabelValues(serial)
}
