package device

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/fbmirror/internal/events"
	"github.com/smazurov/fbmirror/internal/metrics"
	"github.com/smazurov/fbmirror/internal/process"
)

// ConnectivityState is the lifecycle state of a session.
type ConnectivityState int

// Session lifecycle states.
const (
	StateDisconnected ConnectivityState = iota
	StateProbing
	StateConnected
)

func (s ConnectivityState) String() string {
	switch s {
	case StateProbing:
		return "probing"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// EventSink receives session events. *events.Bus implements it.
type EventSink interface {
	Publish(ev events.Event)
}

// Options configures session cadence and behavior.
type Options struct {
	Serial                string
	FastDelay             time.Duration
	DelayStep             time.Duration
	MaxDelay              time.Duration
	ScreenOffDelay        time.Duration
	WaitTimeout           time.Duration // bounded wait on each wait-for-device round
	BacklightPollInterval time.Duration
	WakeOnProbe           bool
}

// DefaultOptions returns the stock cadence.
func DefaultOptions() Options {
	return Options{
		FastDelay:             DelayFast,
		DelayStep:             DelayStep,
		MaxDelay:              DelayMax,
		ScreenOffDelay:        DelayScreenOff,
		WaitTimeout:           500 * time.Millisecond,
		BacklightPollInterval: time.Second,
		WakeOnProbe:           true,
	}
}

// Tuning holds the cadence values that may change while a session runs.
// Zero fields are left unchanged.
type Tuning struct {
	FastDelay             time.Duration
	DelayStep             time.Duration
	MaxDelay              time.Duration
	ScreenOffDelay        time.Duration
	BacklightPollInterval time.Duration
}

// Status is a point-in-time view of a session.
type Status struct {
	SessionID  string          `json:"session_id" doc:"Session identifier"`
	Serial     string          `json:"serial,omitempty" example:"emulator-5554" doc:"Device serial"`
	State      string          `json:"state" example:"connected" doc:"Connectivity state"`
	Variant    string          `json:"variant" example:"modern" doc:"Input protocol variant"`
	Width      int             `json:"width" example:"720" doc:"Screen width in pixels"`
	Height     int             `json:"height" example:"1280" doc:"Screen height in pixels"`
	Format     string          `json:"format" example:"RGBX8888" doc:"Capture pixel format"`
	ScreenOn   bool            `json:"screen_on" doc:"Whether the backlight is lit"`
	Brightness int             `json:"brightness" example:"102" doc:"Last backlight reading"`
	Paused     bool            `json:"paused" doc:"Whether capture is paused"`
	Compressed bool            `json:"compressed" doc:"Whether captures are compressed in transit"`
	DelayMs    int64           `json:"delay_ms" example:"200" doc:"Current delay between captures"`
	Frames     uint64          `json:"frames" example:"1234" doc:"Frames decoded since the last probe"`
	PowerKeys  []DeviceKeyInfo `json:"power_keys" doc:"Power key candidates"`
}

type request struct {
	fn   func() error
	errc chan error
}

// Session drives one device. All device commands run on the goroutine
// executing Run; other methods submit work to it and wait for the result.
type Session struct {
	id      string
	bridge  Bridge
	decoder *FrameDecoder
	power   *PowerKeyManager
	delay   *DelayController
	sink    EventSink
	logger  *slog.Logger

	requests chan request
	done     chan struct{}
	alive    atomic.Bool
	paused   atomic.Bool

	// owned by the Run goroutine
	opts       Options
	state      ConnectivityState
	variant    InputVariant
	input      *InputSynthesizer
	header     CaptureHeader
	screenOn   bool
	brightness int
	frames     uint64
	waiter     process.Handle
	backlight  *time.Ticker

	mu     sync.RWMutex
	cancel context.CancelFunc
	view   Status
	latest *FrameBuffer
}

// NewSession creates a session. Call Run to start it.
func NewSession(bridge Bridge, decoder *FrameDecoder, power *PowerKeyManager, sink EventSink, opts Options, logger *slog.Logger) *Session {
	def := DefaultOptions()
	if opts.FastDelay <= 0 {
		opts.FastDelay = def.FastDelay
	}
	if opts.DelayStep <= 0 {
		opts.DelayStep = def.DelayStep
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = def.MaxDelay
	}
	if opts.ScreenOffDelay <= 0 {
		opts.ScreenOffDelay = def.ScreenOffDelay
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = def.WaitTimeout
	}
	if opts.BacklightPollInterval <= 0 {
		opts.BacklightPollInterval = def.BacklightPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		id:       uuid.NewString(),
		bridge:   bridge,
		decoder:  decoder,
		power:    power,
		delay:    NewDelayController(opts.FastDelay, opts.DelayStep, opts.MaxDelay),
		sink:     sink,
		requests: make(chan request),
		done:     make(chan struct{}),
		opts:     opts,
	}
	s.logger = logger.With("session_id", s.id)
	s.alive.Store(true)
	s.refreshView()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Run owns the device until ctx is cancelled or Stop is called.
// It must be called at most once.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()
	defer close(s.done)
	defer s.teardown()

	if !s.alive.Load() {
		return nil
	}

	s.logger.Info("Session started", "serial", s.opts.Serial)

	s.backlight = time.NewTicker(s.opts.BacklightPollInterval)
	defer s.backlight.Stop()

	ticks := make(chan chan struct{})
	go s.pace(ctx, ticks)

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-s.requests:
			req.errc <- req.fn()
		case ack := <-ticks:
			if !s.alive.Load() {
				close(ack)
				return nil
			}
			s.tick()
			close(ack)
		case <-s.backlight.C:
			s.checkBacklight()
		}
		s.refreshView()
	}
}

// Stop ends the session loop. A pending delay wait is released immediately.
func (s *Session) Stop() {
	s.alive.Store(false)
	s.delay.SetDelay(0)

	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// pace releases one tick per delay period and waits for it to be handled.
func (s *Session) pace(ctx context.Context, ticks chan<- chan struct{}) {
	for {
		if err := s.delay.Wait(ctx); err != nil {
			return
		}
		if !s.alive.Load() {
			return
		}
		ack := make(chan struct{})
		select {
		case ticks <- ack:
		case <-ctx.Done():
			return
		}
		select {
		case <-ack:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) teardown() {
	if s.waiter != nil && s.waiter.Running() {
		if err := s.waiter.Kill(); err != nil {
			s.logger.Debug("Failed to stop device waiter", "error", err)
		}
	}
	s.waiter = nil
	s.alive.Store(false)
	metrics.DeleteSessionMetrics(s.metricsLabel())
	s.logger.Info("Session stopped")
}

func (s *Session) tick() {
	switch s.state {
	case StateDisconnected:
		s.waitForDevice()
	case StateConnected:
		s.captureCycle()
	}
}

// waitForDevice keeps one asynchronous wait-for-device running and checks
// it with a bounded wait on every tick.
func (s *Session) waitForDevice() {
	if s.waiter == nil {
		h, err := s.bridge.WaitForDevice()
		if err != nil {
			s.logger.Warn("Failed to start device wait", "error", err)
			s.publish(events.WaitTimeoutEvent{SessionID: s.id, Timestamp: now()})
			return
		}
		s.waiter = h
	}

	res, err := s.waiter.Wait(s.opts.WaitTimeout)
	if errors.Is(err, process.ErrStillRunning) {
		s.publish(events.WaitTimeoutEvent{SessionID: s.id, Timestamp: now()})
		return
	}
	s.waiter = nil

	if err != nil || !res.Success() {
		s.logger.Debug("Device wait failed", "exit_code", res.ExitCode, "error", err)
		s.publish(events.WaitTimeoutEvent{SessionID: s.id, Timestamp: now()})
		return
	}

	s.logger.Info("Device found")
	s.probe()
}

// probe discovers the capture geometry and input capabilities of a newly
// found device. Any failure returns the session to disconnected.
func (s *Session) probe() {
	s.setState(StateProbing)
	s.statusMessage("Probing device...")

	s.decoder.CheckCompression()

	variant, err := DetectVariant(s.bridge)
	if err != nil {
		s.disconnect(err)
		return
	}

	raw, err := s.decoder.Capture()
	if err != nil {
		s.disconnect(err)
		return
	}
	header, err := DecodeHeader(raw)
	if err != nil {
		s.disconnect(err)
		return
	}
	frame, err := s.decoder.Decode(raw, header)
	if err != nil {
		s.disconnect(err)
		return
	}

	s.header = header
	s.variant = variant
	s.input = NewInputSynthesizer(variant)
	// Assume the screen is lit until the backlight has been read.
	s.screenOn = true
	s.brightness = 100
	s.frames = 0

	s.setState(StateConnected)
	s.logger.Info("Device connected",
		"width", header.Width,
		"height", header.Height,
		"format", header.Format.String(),
		"variant", variant.String(),
		"compressed", s.decoder.Compressed())
	s.publish(events.ConnectedEvent{
		SessionID: s.id,
		Serial:    s.opts.Serial,
		Width:     header.Width,
		Height:    header.Height,
		Format:    header.Format.String(),
		Variant:   variant.String(),
		Timestamp: now(),
	})
	s.setDelay(s.opts.FastDelay)
	s.emitFrame(frame)

	if err := s.power.Discover(); err != nil {
		s.disconnect(err)
		return
	}
	if s.opts.WakeOnProbe && len(s.power.Candidates()) > 0 {
		if err := s.wake(); err != nil && !IsCode(err, ErrCodeWakeIneffective) {
			return
		}
	}
}

func (s *Session) captureCycle() {
	if s.paused.Load() || !s.screenOn {
		return
	}

	start := time.Now()
	raw, err := s.decoder.Capture()
	var frame *FrameBuffer
	if err == nil {
		frame, err = s.decoder.Decode(raw, s.header)
	}
	elapsed := time.Since(start)
	metrics.RecordCapture(s.metricsLabel(), elapsed, err)

	if err != nil {
		s.disconnect(err)
		return
	}
	s.emitFrame(frame)

	if elapsed > s.delay.CurrentDelay() {
		d := s.delay.Increase()
		metrics.SetCaptureDelay(s.metricsLabel(), d)
		s.logger.Debug("Capture slower than delay, backing off", "elapsed", elapsed, "delay", d)
	}
}

func (s *Session) emitFrame(frame *FrameBuffer) {
	s.frames++
	s.mu.Lock()
	s.latest = frame
	s.mu.Unlock()

	s.publish(events.FrameReadyEvent{
		SessionID: s.id,
		Buffer:    frame.Pix,
		Width:     frame.Width,
		Height:    frame.Height,
		Format:    frame.Source.String(),
		Sequence:  s.frames,
	})
}

// checkBacklight follows the screen state while connected.
func (s *Session) checkBacklight() {
	if s.state != StateConnected {
		return
	}
	level, err := s.power.Brightness()
	if err != nil {
		s.disconnect(err)
		return
	}
	s.observeBacklight(level, false)
}

// observeBacklight switches between normal and screen-off cadence.
// force re-announces a lit screen even without a transition.
func (s *Session) observeBacklight(level int, force bool) {
	wasOn := s.screenOn
	s.brightness = level

	switch {
	case level > 0 && (!wasOn || force):
		s.screenOn = true
		s.logger.Debug("Screen is turned on", "brightness", level)
		s.setDelay(s.opts.FastDelay)
		s.publish(events.ScreenOnEvent{SessionID: s.id, Brightness: level, Timestamp: now()})
	case level <= 0 && wasOn:
		s.screenOn = false
		s.logger.Debug("Screen is turned off")
		s.setDelay(s.opts.ScreenOffDelay)
		s.publish(events.ScreenOffEvent{SessionID: s.id, Timestamp: now()})
	}
	metrics.SetScreenOn(s.metricsLabel(), s.screenOn)
}

// wake lights the screen, pressing power keys only when it is off.
func (s *Session) wake() error {
	level, err := s.power.Brightness()
	if err != nil {
		s.disconnect(err)
		return err
	}
	if level > 0 {
		s.observeBacklight(level, true)
		return nil
	}

	s.statusMessage("Waking up device...")
	level, err = s.power.Wake()
	metrics.RecordWake(s.metricsLabel(), err == nil)
	if err != nil {
		if IsCode(err, ErrCodeWakeIneffective) {
			s.logger.Warn("Wake failed", "error", err)
			s.observeBacklight(0, false)
			return err
		}
		s.disconnect(err)
		return err
	}
	s.observeBacklight(level, true)
	return nil
}

// disconnect drops all per-connection state and reports the failure.
func (s *Session) disconnect(reason error) {
	if s.state == StateDisconnected {
		return
	}

	s.logger.Warn("Device disconnected", "error", reason)
	s.setState(StateDisconnected)
	s.variant = VariantUnknown
	s.input = nil
	s.header = CaptureHeader{}
	s.screenOn = false
	s.brightness = 0
	s.power.Reset()
	metrics.RecordDisconnect(s.metricsLabel())

	ev := events.DisconnectedEvent{SessionID: s.id, Timestamp: now()}
	if reason != nil {
		ev.Reason = reason.Error()
	}
	s.publish(ev)
	s.statusMessage("Waiting for device...")
	s.setDelay(s.opts.FastDelay)
}

func (s *Session) setState(state ConnectivityState) {
	s.state = state
	metrics.SetConnectionState(s.metricsLabel(), int(state))
}

func (s *Session) setDelay(d time.Duration) {
	s.delay.SetDelay(d)
	metrics.SetCaptureDelay(s.metricsLabel(), d)
}

func (s *Session) statusMessage(msg string) {
	s.publish(events.StatusMessageEvent{SessionID: s.id, Message: msg, Timestamp: now()})
}

func (s *Session) publish(ev events.Event) {
	if s.sink != nil {
		s.sink.Publish(ev)
	}
}

func (s *Session) metricsLabel() string {
	if s.opts.Serial == "" {
		return "default"
	}
	return s.opts.Serial
}

// submit runs fn on the session goroutine and returns its error.
func (s *Session) submit(ctx context.Context, fn func() error) error {
	req := request{fn: fn, errc: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-s.done:
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// gesture builds input commands against the current synthesizer and sends them.
func (s *Session) gesture(ctx context.Context, kind string, build func(in *InputSynthesizer) []Command) error {
	return s.submit(ctx, func() error {
		if s.state != StateConnected || s.input == nil {
			return newError(ErrCodeNotConnected, "device not connected", nil)
		}
		for _, cmd := range build(s.input) {
			if _, err := shellOK(s.bridge, kind, cmd...); err != nil {
				s.disconnect(err)
				return err
			}
			metrics.RecordInput(s.metricsLabel(), kind)
		}
		return nil
	})
}

// Press starts a press at p.
func (s *Session) Press(ctx context.Context, p Point) error {
	return s.gesture(ctx, "press", func(in *InputSynthesizer) []Command {
		return in.BeginPress(p)
	})
}

// Move moves a held press to p.
func (s *Session) Move(ctx context.Context, p Point) error {
	return s.gesture(ctx, "move", func(in *InputSynthesizer) []Command {
		return in.Move(p)
	})
}

// Release ends a press at p, producing a tap or a swipe.
func (s *Session) Release(ctx context.Context, p Point) error {
	return s.gesture(ctx, "release", func(in *InputSynthesizer) []Command {
		return in.EndPress(p)
	})
}

// Tap presses and releases at p.
func (s *Session) Tap(ctx context.Context, p Point) error {
	return s.gesture(ctx, "tap", func(in *InputSynthesizer) []Command {
		cmds := in.BeginPress(p)
		return append(cmds, in.EndPress(p)...)
	})
}

// Swipe drags from one point to another.
func (s *Session) Swipe(ctx context.Context, from, to Point) error {
	return s.gesture(ctx, "swipe", func(in *InputSynthesizer) []Command {
		cmds := in.BeginPress(from)
		cmds = append(cmds, in.Move(to)...)
		return append(cmds, in.EndPress(to)...)
	})
}

// SendKey sends an Android key code.
func (s *Session) SendKey(ctx context.Context, code int) error {
	return s.gesture(ctx, "key", func(_ *InputSynthesizer) []Command {
		return []Command{KeyEvent(code)}
	})
}

// Wake turns the screen on through the discovered power keys.
func (s *Session) Wake(ctx context.Context) error {
	return s.submit(ctx, func() error {
		if s.state != StateConnected {
			return newError(ErrCodeNotConnected, "device not connected", nil)
		}
		return s.wake()
	})
}

// ApplyTuning changes cadence settings on a running session.
func (s *Session) ApplyTuning(ctx context.Context, t Tuning) error {
	return s.submit(ctx, func() error {
		if t.FastDelay > 0 {
			s.opts.FastDelay = t.FastDelay
		}
		if t.DelayStep > 0 {
			s.opts.DelayStep = t.DelayStep
		}
		if t.MaxDelay > 0 {
			s.opts.MaxDelay = t.MaxDelay
		}
		if t.ScreenOffDelay > 0 {
			s.opts.ScreenOffDelay = t.ScreenOffDelay
		}
		if t.BacklightPollInterval > 0 && t.BacklightPollInterval != s.opts.BacklightPollInterval {
			s.opts.BacklightPollInterval = t.BacklightPollInterval
			if s.backlight != nil {
				s.backlight.Reset(t.BacklightPollInterval)
			}
		}
		s.delay.SetLimits(s.opts.DelayStep, s.opts.MaxDelay)

		if s.state == StateConnected && !s.screenOn {
			s.setDelay(s.opts.ScreenOffDelay)
		} else {
			s.setDelay(s.opts.FastDelay)
		}
		s.logger.Info("Session tuning applied",
			"fast_delay", s.opts.FastDelay,
			"delay_step", s.opts.DelayStep,
			"max_delay", s.opts.MaxDelay,
			"screen_off_delay", s.opts.ScreenOffDelay,
			"backlight_interval", s.opts.BacklightPollInterval)
		return nil
	})
}

// Pause stops capturing without dropping the connection.
func (s *Session) Pause() {
	s.paused.Store(true)
}

// Resume restarts capturing after Pause.
func (s *Session) Resume() {
	s.paused.Store(false)
}

// Paused reports whether capture is paused.
func (s *Session) Paused() bool {
	return s.paused.Load()
}

// Status returns the last published view of the session.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.view
	st.PowerKeys = make([]DeviceKeyInfo, len(s.view.PowerKeys))
	copy(st.PowerKeys, s.view.PowerKeys)
	st.DelayMs = s.delay.CurrentDelay().Milliseconds()
	st.Paused = s.paused.Load()
	return st
}

// LatestFrame returns the most recent decoded frame, or nil.
// The frame must be treated as read-only.
func (s *Session) LatestFrame() *FrameBuffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// refreshView copies actor-owned state into the view read by Status.
func (s *Session) refreshView() {
	view := Status{
		SessionID:  s.id,
		Serial:     s.opts.Serial,
		State:      s.state.String(),
		Variant:    s.variant.String(),
		ScreenOn:   s.screenOn,
		Brightness: s.brightness,
		Compressed: s.decoder != nil && s.decoder.Compressed(),
		Frames:     s.frames,
	}
	if s.state == StateConnected {
		view.Width = s.header.Width
		view.Height = s.header.Height
		view.Format = s.header.Format.String()
	}
	if s.power != nil {
		view.PowerKeys = s.power.Candidates()
	}

	s.mu.Lock()
	s.view = view
	s.mu.Unlock()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
