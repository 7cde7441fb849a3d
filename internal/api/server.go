package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/prysmalight/prysma-core/internal/fanout"
	"github.com/prysmalight/prysma-core/internal/infrastructure/config"
	"github.com/prysmalight/prysma-core/internal/infrastructure/logging"
	"github.com/prysmalight/prysma-core/internal/light"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by infrastructure clients
// (*database.DB, *mqtt.Client, *influxdb.Client).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BacklogReporter exposes the reconciler's queue depth. *light.Reconciler satisfies it.
type BacklogReporter interface {
	Backlog() uint64
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Lights   *light.Service
	Broker   *fanout.Broker

	// Checks are reported by GET /health, keyed by component name.
	Checks     map[string]HealthChecker
	Reconciler BacklogReporter
	Version    string
}

// Server is the HTTP API server for Prysma Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	lights     *light.Service
	broker     *fanout.Broker
	checks     map[string]HealthChecker
	reconciler BacklogReporter
	version    string
	limiter    *rate.Limiter
	hub        *Hub
	server     *http.Server
	listener   net.Listener
	cancel     context.CancelFunc // cancels background goroutines on Close()
	wg         sync.WaitGroup
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Lights == nil {
		return nil, fmt.Errorf("light service is required")
	}
	if deps.Broker == nil {
		return nil, fmt.Errorf("fanout broker is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		lights:     deps.Lights,
		broker:     deps.Broker,
		checks:     deps.Checks,
		reconciler: deps.Reconciler,
		version:    deps.Version,
		hub:        NewHub(deps.WS, deps.Logger),
	}

	if rl := deps.Security.RateLimit; rl.Enabled && rl.RequestsPerMinute > 0 {
		burst := rl.Burst
		if burst <= 0 {
			burst = rl.RequestsPerMinute
		}
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.RequestsPerMinute)), burst)
	}

	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays light events from the fanout broker
// to the hub, and serves HTTP in a background goroutine. The listener is
// bound before Start returns, so a port in use is reported here.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listening on %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	s.listener = ln

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	s.startBackground(srvCtx)

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// startBackground runs the hub and the fanout relay until ctx is cancelled.
// The relay is subscribed before it returns, so no event published after
// Start is missed.
func (s *Server) startBackground(ctx context.Context) {
	sub := s.broker.Subscribe(light.Topics...)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.hub.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.relayEvents(ctx, sub)
	}()
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
