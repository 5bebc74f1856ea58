package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/fbmirror/internal/events"
)

// registerSSERoutes registers the session event stream.
// Frames are not sent here; they go over /ws/frames.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time session events: connectivity, wait timeouts, screen state and status messages",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"connected":      events.ConnectedEvent{},
		"disconnected":   events.DisconnectedEvent{},
		"wait-timeout":   events.WaitTimeoutEvent{},
		"screen-on":      events.ScreenOnEvent{},
		"screen-off":     events.ScreenOffEvent{},
		"status-message": events.StatusMessageEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribe := events.SubscribeSessionEvents(s.eventBus, eventCh)
		defer unsubscribe()

		st := s.session.Status()
		if err := send.Data(events.StatusMessageEvent{
			SessionID: st.SessionID,
			Message:   "SSE connection established (" + st.State + ")",
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
