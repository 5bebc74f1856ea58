package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smazurov/fbmirror/internal/device"
	"github.com/smazurov/fbmirror/internal/events"
	"github.com/smazurov/fbmirror/internal/snapshot"
)

const (
	frameWriteTimeout = 5 * time.Second
	controlTimeout    = 10 * time.Second
)

// ControlMessage is a text frame sent by /ws/frames clients to drive input.
type ControlMessage struct {
	Type string       `json:"type"` // press, move, release, tap, swipe, key, wake
	X    int          `json:"x"`
	Y    int          `json:"y"`
	To   device.Point `json:"to"`
	Code int          `json:"code"`
}

// ControlReply answers a ControlMessage that failed.
type ControlReply struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleFrames upgrades to a websocket, pushes each decoded frame as a
// binary JPEG message and applies control messages read from the client.
// Frames that arrive while a previous one is still being written are dropped.
func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	if s.authEnabled() {
		user, pass, err := credentialsFrom(r.Header.Get("Authorization"), r.URL.Query().Get("auth"))
		if err != nil || user != s.options.AuthUsername || pass != s.options.AuthPassword {
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	remote := r.RemoteAddr
	s.logger.Info("Frame client connected", "remote_addr", remote)
	defer s.logger.Info("Frame client disconnected", "remote_addr", remote)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames := make(chan events.FrameReadyEvent, 1)
	unsubscribe := s.eventBus.Subscribe(func(e events.FrameReadyEvent) {
		select {
		case frames <- e:
		default:
		}
	})
	defer unsubscribe()

	replies := make(chan ControlReply, 4)
	go s.readControl(ctx, cancel, conn, replies)

	opts := snapshot.Options{
		Format:   snapshot.FormatJPEG,
		MaxWidth: s.options.FrameWidth,
		Quality:  s.options.FrameQuality,
	}

	if frame := s.session.LatestFrame(); frame != nil {
		if err := s.writeFrame(conn, frame, opts); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case reply := <-replies:
			_ = conn.SetWriteDeadline(time.Now().Add(frameWriteTimeout))
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		case e := <-frames:
			frame := &device.FrameBuffer{Pix: e.Buffer, Width: e.Width, Height: e.Height}
			if err := s.writeFrame(conn, frame, opts); err != nil {
				s.logger.Debug("Frame write failed", "remote_addr", remote, "error", err)
				return
			}
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, frame *device.FrameBuffer, opts snapshot.Options) error {
	data, err := snapshot.EncodeBytes(frame, opts)
	if err != nil {
		s.logger.Warn("Failed to encode frame", "error", err)
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(frameWriteTimeout))
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// readControl reads client messages until the connection fails, then cancels ctx.
func (s *Server) readControl(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, replies chan<- ControlReply) {
	defer cancel()
	for {
		messageType, p, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg ControlMessage
		if err := json.Unmarshal(p, &msg); err != nil {
			s.logger.Debug("Ignoring malformed control message", "error", err)
			continue
		}

		cctx, ccancel := context.WithTimeout(ctx, controlTimeout)
		err = s.applyControl(cctx, msg)
		ccancel()
		if err != nil {
			select {
			case replies <- ControlReply{Type: msg.Type, Error: err.Error()}:
			default:
			}
		}
	}
}

func (s *Server) applyControl(ctx context.Context, msg ControlMessage) error {
	p := device.Point{X: msg.X, Y: msg.Y}
	switch msg.Type {
	case "press":
		return s.session.Press(ctx, p)
	case "move":
		return s.session.Move(ctx, p)
	case "release":
		return s.session.Release(ctx, p)
	case "tap":
		return s.session.Tap(ctx, p)
	case "swipe":
		return s.session.Swipe(ctx, p, msg.To)
	case "key":
		return s.session.SendKey(ctx, msg.Code)
	case "wake":
		return s.session.Wake(ctx)
	default:
		return fmt.Errorf("unknown control message type %q", msg.Type)
	}
}
