package events

// Event type constants for kelindar/event.
const (
	TypeFrameReady uint32 = iota + 1
	TypeConnected
	TypeDisconnected
	TypeWaitTimeout
	TypeScreenOn
	TypeScreenOff
	TypeStatusMessage
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// FrameReadyEvent carries one decoded RGB888 frame.
// Buffer is owned by the receiver for one render and must not be modified.
type FrameReadyEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	Buffer    []byte `json:"-"`
	Width     int    `json:"width" example:"720" doc:"Frame width in pixels"`
	Height    int    `json:"height" example:"1280" doc:"Frame height in pixels"`
	Format    string `json:"format" example:"RGBX8888" doc:"Source pixel format of the capture"`
	Sequence  uint64 `json:"sequence" example:"42" doc:"Frame sequence number within the connection"`
}

// Type returns the event type identifier for FrameReadyEvent.
func (e FrameReadyEvent) Type() uint32 { return TypeFrameReady }

// ConnectedEvent announces the geometry and format of a newly probed device.
type ConnectedEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	Serial    string `json:"serial,omitempty" example:"emulator-5554" doc:"Device serial"`
	Width     int    `json:"width" example:"720" doc:"Screen width in pixels"`
	Height    int    `json:"height" example:"1280" doc:"Screen height in pixels"`
	Format    string `json:"format" example:"RGBX8888" doc:"Capture pixel format"`
	Variant   string `json:"variant" example:"modern" doc:"Detected input protocol variant"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConnectedEvent.
func (e ConnectedEvent) Type() uint32 { return TypeConnected }

// DisconnectedEvent reports loss of the device.
type DisconnectedEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	Reason    string `json:"reason,omitempty" example:"BRIDGE_UNAVAILABLE: capture failed" doc:"Failure that caused the disconnect"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DisconnectedEvent.
func (e DisconnectedEvent) Type() uint32 { return TypeDisconnected }

// WaitTimeoutEvent is published when a wait-for-device round expires without a device.
type WaitTimeoutEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for WaitTimeoutEvent.
func (e WaitTimeoutEvent) Type() uint32 { return TypeWaitTimeout }

// ScreenOnEvent is published when the backlight is observed lit.
type ScreenOnEvent struct {
	SessionID  string `json:"session_id" doc:"Session identifier"`
	Brightness int    `json:"brightness" example:"102" doc:"Backlight level"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ScreenOnEvent.
func (e ScreenOnEvent) Type() uint32 { return TypeScreenOn }

// ScreenOffEvent is published when the backlight reads zero.
type ScreenOffEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ScreenOffEvent.
func (e ScreenOffEvent) Type() uint32 { return TypeScreenOff }

// StatusMessageEvent carries a human readable progress message.
type StatusMessageEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	Message   string `json:"message" example:"Probing device..." doc:"Status text"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StatusMessageEvent.
func (e StatusMessageEvent) Type() uint32 { return TypeStatusMessage }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"session" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
