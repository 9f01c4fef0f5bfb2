// Package server exposes calculator sessions over HTTP and websockets. Each
// browser gets its own session, addressed by a signed token.
package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antibyte/retrocalc/pkg/auth"
	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/history"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/session"
	tlsmgr "github.com/antibyte/retrocalc/pkg/tls"

	"github.com/gorilla/websocket"
)

//go:embed static/index.html
var indexHTML []byte

// Options configures a Server. OptionsFromConfig fills it from settings.cfg.
type Options struct {
	ListenAddress  string
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
	AllowedOrigins []string

	MaxClients  int
	RateLimit   int
	RateWindow  time.Duration
	MaxSessions int
	SessionIdle time.Duration

	HistoryMaxEntries int
	Session           session.Options
}

// OptionsFromConfig reads the [Network], [Security], [History] and
// [Calculator] sections.
func OptionsFromConfig() Options {
	var origins []string
	for _, o := range strings.Split(configuration.GetString("Network", "allowed_origins", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return Options{
		ListenAddress:  configuration.GetString("Network", "listen_address", ":8080"),
		PongWait:       configuration.GetDuration("Network", "pong_timeout", 60*time.Second),
		WriteWait:      configuration.GetDuration("Network", "write_wait_timeout", 10*time.Second),
		MaxMessageSize: int64(configuration.GetInt("Network", "max_message_size_kb", 4)) * 1024,
		SendBuffer:     configuration.GetInt("Network", "client_send_buffer", 64),
		AllowedOrigins: origins,

		MaxClients:  configuration.GetInt("Security", "max_clients", 100),
		RateLimit:   configuration.GetInt("Security", "rate_limit_messages", 200),
		RateWindow:  configuration.GetDuration("Security", "rate_limit_window", time.Minute),
		MaxSessions: configuration.GetInt("Security", "max_sessions", 1000),
		SessionIdle: configuration.GetDuration("Security", "session_idle_time", 30*time.Minute),

		HistoryMaxEntries: configuration.GetInt("History", "max_entries", history.DefaultMaxEntries),
		Session:           session.OptionsFromConfig(),
	}
}

func (o Options) pingPeriod() time.Duration {
	return o.PongWait * 9 / 10
}

func (o *Options) applyDefaults() {
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4 * 1024
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.RateWindow <= 0 {
		o.RateWindow = time.Minute
	}
}

// Server serves the calculator page, the session API and the websocket.
type Server struct {
	opts     Options
	registry *Registry
	clients  *ClientManager
	upgrader websocket.Upgrader
}

// New creates a server. Sessions get an in-memory history each.
func New(opts Options) *Server {
	opts.applyDefaults()
	s := &Server{
		opts:    opts,
		clients: NewClientManager(opts.MaxClients, opts.RateLimit, opts.RateWindow),
	}
	s.registry = NewRegistry(opts.MaxSessions, func() *session.Session {
		return session.NewWithOptions(history.New(opts.HistoryMaxEntries, nil), opts.Session)
	})
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients), the configured origins, or else the server's own host.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.opts.AllowedOrigins) > 0 {
		for _, allowed := range s.opts.AllowedOrigins {
			if origin == allowed {
				return true
			}
		}
		logger.SecurityWarn("WebSocket origin %s rejected", origin)
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || !strings.EqualFold(u.Host, r.Host) {
		logger.SecurityWarn("Cross-origin WebSocket request from %s rejected", origin)
		return false
	}
	return true
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session", auth.HandleCreateSession(s.registry))
	mux.HandleFunc("/api/session/validate", auth.HandleTokenValidation)
	mux.HandleFunc("/api/session/logout", auth.HandleLogout)
	mux.HandleFunc("/ws", auth.RequireSessionToken(s.handleWebSocket))
	mux.HandleFunc("/", s.serveIndex)
	return mux
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Write(indexHTML)
}

// janitor prunes idle sessions and stale rate-limit entries until ctx ends.
func (s *Server) janitor(ctx context.Context) {
	interval := s.opts.SessionIdle / 4
	if interval <= 0 || interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.opts.SessionIdle > 0 {
				s.registry.PruneIdle(s.opts.SessionIdle, s.clients.HasClient)
			}
			s.clients.PruneRateLimits()
			logger.WebSocketDebug("%d clients connected, %d sessions", s.clients.ClientCount(), s.registry.Len())
		}
	}
}

// Run listens until ctx is cancelled. With TLS enabled it serves HTTPS on the
// manager's address and, if needed, plain HTTP for ACME challenges and
// redirects on the listen address.
func (s *Server) Run(ctx context.Context, tm *tlsmgr.Manager) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.janitor(ctx)

	var servers []*http.Server
	errc := make(chan error, 2)

	if tm != nil && tm.IsEnabled() {
		httpsServer := &http.Server{
			Addr:              tm.Addr(),
			Handler:           s.Handler(),
			TLSConfig:         tm.TLSConfig(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		servers = append(servers, httpsServer)
		go func() {
			logger.Info(logger.AreaGeneral, "HTTPS server listening on %s", httpsServer.Addr)
			errc <- httpsServer.ListenAndServeTLS("", "")
		}()

		if tm.NeedsHTTPServer() {
			httpServer := &http.Server{
				Addr:              s.opts.ListenAddress,
				Handler:           tm.HTTPHandler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			servers = append(servers, httpServer)
			go func() {
				logger.Info(logger.AreaGeneral, "HTTP redirect server listening on %s", httpServer.Addr)
				errc <- httpServer.ListenAndServe()
			}()
		}
	} else {
		httpServer := &http.Server{
			Addr:              s.opts.ListenAddress,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		servers = append(servers, httpServer)
		go func() {
			logger.Info(logger.AreaGeneral, "HTTP server listening on %s", httpServer.Addr)
			errc <- httpServer.ListenAndServe()
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server: %w", err)
		}
	}

	s.clients.CloseAll()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn(logger.AreaGeneral, "Shutdown of %s: %v", srv.Addr, err)
		}
	}
	return runErr
}
