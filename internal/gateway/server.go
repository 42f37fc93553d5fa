// Package gateway provides the HTTP server: OAuth endpoints, the
// webchat WebSocket and operational surfaces.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gostudy/bookbot/internal/auth"
	"github.com/gostudy/bookbot/internal/channel"
	"github.com/gostudy/bookbot/internal/channel/webchat"
	"github.com/gostudy/bookbot/internal/config"
	"github.com/gostudy/bookbot/internal/logging"
	"github.com/gostudy/bookbot/internal/metrics"
	"github.com/gostudy/bookbot/internal/version"
)

// Server is the bot's HTTP front: it mounts the OAuth flow, upgrades
// webchat connections and serves health and metrics.
type Server struct {
	cfg        config.GatewayConfig
	authRoutes *auth.Handler
	web        *webchat.Channel
	channels   *channel.Registry
	gatherer   prometheus.Gatherer
	log        *logging.Logger

	httpServer *http.Server
	startedAt  time.Time
}

// New creates a gateway server. web may be nil when the webchat channel
// is disabled; gatherer may be nil to skip the metrics endpoint.
func New(cfg config.GatewayConfig, authRoutes *auth.Handler, web *webchat.Channel, channels *channel.Registry, gatherer prometheus.Gatherer, log *logging.Logger) *Server {
	return &Server{
		cfg:        cfg,
		authRoutes: authRoutes,
		web:        web,
		channels:   channels,
		gatherer:   gatherer,
		log:        log.Sub("gateway"),
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Routes builds the chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(s.log))
	r.Use(recoverer(s.log))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Mount("/auth", s.authRoutes.Routes())
	if s.web != nil {
		r.Get("/ws", s.web.HandleWS)
	}
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))
	}
	return r
}

// Start listens and serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "GoStudy Booking Bot is running 🚀",
		"version": version.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.channels != nil {
		body["channels"] = s.channels.Status()
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
