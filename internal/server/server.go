// Package server exposes the HTTP API: stream status and control, camera
// discovery, command preview, self-update, metrics, and static hosting for
// the DASH manifest and viewer page.
package server

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/streampi/streampi/internal/config"
	"github.com/streampi/streampi/internal/events"
	"github.com/streampi/streampi/internal/logging"
	"github.com/streampi/streampi/internal/process"
	"github.com/streampi/streampi/internal/systemd"
	"github.com/streampi/streampi/internal/updater"
)

// StreamController is the supervised FFmpeg process, when this server runs
// inside the serve command. Nil when the stream runs as a separate unit.
type StreamController interface {
	Info() process.Info
	Command() string
	RequestRestart(newCommand string)
}

// Options configures the API server.
type Options struct {
	AuthUsername string
	AuthPassword string

	// LoadSettings returns the current stream settings; called fresh on
	// every status or restart request.
	LoadSettings func() (config.StreamSettings, error)

	// SaveSettings persists stream settings back to the config file. The
	// config watcher picks up the write and restarts the stream.
	SaveSettings func(config.StreamSettings) error

	Controller     StreamController // nil when not supervising FFmpeg
	Systemd        *systemd.Manager // nil without D-Bus
	Bus            *events.Bus
	Updater        *updater.Updater
	MetricsHandler http.Handler

	// Static hosting for manifest deployments.
	ManifestDir string
	IndexPath   string
}

// Server is the Huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	logger     *slog.Logger
}

// NewServer creates the API server using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	cfg := huma.DefaultConfig("StreamPi API", "1.0.0")
	cfg.Info.Description = "Raspberry Pi camera streaming control API"
	// Relative paths in the OpenAPI doc work behind any host.
	cfg.Servers = []*huma.Server{}
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, cfg)

	server := &Server{
		api:     api,
		mux:     mux,
		options: opts,
		logger:  logging.GetLogger("api"),
	}

	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	server.registerRoutes()
	server.registerStatic()

	return server
}

// API returns the Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Handler returns the root HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the HTTP server on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down without waiting for open connections.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.registerSystemRoutes()
	s.registerCameraRoutes()
	s.registerStreamRoutes()
	s.registerEventRoutes()
	s.registerUpdateRoutes()
}

// registerStatic serves the viewer page and the manifest directory so a
// plain browser can watch the DASH stream without nginx.
func (s *Server) registerStatic() {
	if s.options.ManifestDir != "" {
		fs := http.FileServer(http.Dir(s.options.ManifestDir))
		s.mux.Handle("GET /streaming/", http.StripPrefix("/streaming/", fs))
	}
	if s.options.IndexPath != "" {
		indexPath := s.options.IndexPath
		s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, indexPath)
		})
	}
}

// basicAuthMiddleware enforces HTTP basic auth on operations that declare a
// security requirement. SSE clients may pass credentials via ?auth= since
// EventSource cannot set headers.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		unauthorized := func(message string, errs ...error) {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="StreamPi API"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, message, errs...)
		}

		var credentials string
		if authHeader := ctx.Header("Authorization"); authHeader != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(authHeader, prefix) {
				unauthorized("Invalid authentication type")
				return
			}
			decoded, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
			if err != nil {
				unauthorized("Invalid credentials format", err)
				return
			}
			credentials = string(decoded)
		} else if queryAuth := ctx.Query("auth"); queryAuth != "" {
			decoded, err := base64.StdEncoding.DecodeString(queryAuth)
			if err != nil {
				unauthorized("Invalid credentials format", err)
				return
			}
			credentials = string(decoded)
		}

		if credentials == "" {
			unauthorized("Authentication required")
			return
		}

		parts := strings.SplitN(credentials, ":", 2)
		if len(parts) != 2 || parts[0] != username || parts[1] != password {
			unauthorized("Invalid credentials")
			return
		}

		next(ctx)
	}
}

// withAuth returns the security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
