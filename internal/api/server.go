package api

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/gorilla/websocket"

	"github.com/smazurov/fbmirror/internal/api/models"
	"github.com/smazurov/fbmirror/internal/device"
	"github.com/smazurov/fbmirror/internal/events"
	"github.com/smazurov/fbmirror/internal/logging"
	"github.com/smazurov/fbmirror/internal/version"
)

const authRealm = `Basic realm="fbmirror API"`

// SessionController is the part of a device session the API drives.
type SessionController interface {
	Status() device.Status
	LatestFrame() *device.FrameBuffer
	Press(ctx context.Context, p device.Point) error
	Move(ctx context.Context, p device.Point) error
	Release(ctx context.Context, p device.Point) error
	Tap(ctx context.Context, p device.Point) error
	Swipe(ctx context.Context, from, to device.Point) error
	SendKey(ctx context.Context, code int) error
	Wake(ctx context.Context) error
	Pause()
	Resume()
}

// Options configures the API server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Session           SessionController
	EventBus          *events.Bus
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
	CORSOrigin        string
	// FrameWidth bounds the width of frames pushed over /ws/frames; 0 keeps native size.
	FrameWidth   int
	FrameQuality int
	// OnListening runs once the listener is bound, before requests are served.
	OnListening func()
}

// Server is the huma v2 HTTP surface of a device session.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	session    SessionController
	eventBus   *events.Bus
	options    *Options
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// basicAuthMiddleware creates middleware for HTTP basic authentication.
// SSE clients that cannot set headers may pass base64 credentials in ?auth=.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		user, pass, err := credentialsFrom(ctx.Header("Authorization"), ctx.Query("auth"))
		if err != nil {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, err.Error())
			return
		}
		if user != username || pass != password {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

// credentialsFrom extracts user and password from a Basic header or the auth query value.
func credentialsFrom(header, query string) (string, string, error) {
	var encoded string
	switch {
	case header != "":
		const prefix = "Basic "
		if !strings.HasPrefix(header, prefix) {
			return "", "", errors.New("Invalid authentication type")
		}
		encoded = header[len(prefix):]
	case query != "":
		encoded = query
	default:
		return "", "", errors.New("Authentication required")
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", errors.New("Invalid credentials format")
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", errors.New("Invalid credentials format")
	}
	return user, pass, nil
}

// NewServer creates the API server using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	if opts.CORSOrigin != "" {
		corsConfig.AllowOrigin = opts.CORSOrigin
	}
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("fbmirror API", version.Get().Version)
	config.Info.Description = "Framebuffer mirror and input control for adb-attached devices"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		session:  opts.Session,
		eventBus: opts.EventBus,
		options:  opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if server.authEnabled() {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	mux.HandleFunc("GET /ws/frames", server.handleFrames)

	return server
}

func (s *Server) authEnabled() bool {
	return s.options.AuthUsername != "" && s.options.AuthPassword != ""
}

// GetMux returns the underlying HTTP ServeMux for additional setup.
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the Huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves HTTP on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting fbmirror API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if s.options.OnListening != nil {
		s.options.OnListening()
	}

	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the listener and all open connections.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		return &models.VersionResponse{Body: version.Get()}, nil
	})

	s.registerSessionRoutes()
	s.registerInputRoutes()
	s.registerSnapshotRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
}

// withAuth returns security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
