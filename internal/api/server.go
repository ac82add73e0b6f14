package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-nest/internal/bridges/nest"
	"github.com/nerrad567/gray-logic-nest/internal/device"
	"github.com/nerrad567/gray-logic-nest/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-nest/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

const defaultCommandTimeout = 15 * time.Second

// Controller is the view of the bridge controller the API needs.
// *nest.Controller satisfies it.
type Controller interface {
	Thermostats() []nest.ThermostatStatus
	Thermostat(address string) (nest.ThermostatStatus, bool)
	Dispatch(ctx context.Context, address string, cmd nest.Command) error
	Discover(ctx context.Context) error
	Stats() nest.ControllerStats
}

// HistoryReader reads recorded snapshots.
// *device.SQLiteStateHistoryRepository satisfies it.
type HistoryReader interface {
	GetHistory(ctx context.Context, address string, limit int) ([]device.StateHistoryEntry, error)
}

// ConnectionChecker reports whether a dependency is connected.
type ConnectionChecker interface {
	IsConnected() bool
}

// AuthStatus reports the Nest authorization state.
// *nestapi.Session satisfies it.
type AuthStatus interface {
	AuthorizationRequired() bool
	AuthorizeURL() string
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Controller Controller

	// History is optional; without it the history endpoint returns 503.
	History HistoryReader

	// MQTT and Auth are optional and only feed health and metrics.
	MQTT ConnectionChecker
	Auth AuthStatus

	// DB is optional and feeds connection pool metrics.
	DB DBStatter

	CommandTimeout time.Duration
	Version        string
}

// Server is the status HTTP API of the Nest bridge.
//
// It is created with New() and started with Start().
type Server struct {
	cfg            config.APIConfig
	logger         *logging.Logger
	controller     Controller
	history        HistoryReader
	mqtt           ConnectionChecker
	auth           AuthStatus
	db             DBStatter
	commandTimeout time.Duration
	version        string
	startTime      time.Time
	server         *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	timeout := deps.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	return &Server{
		cfg:            deps.Config,
		logger:         deps.Logger,
		controller:     deps.Controller,
		history:        deps.History,
		mqtt:           deps.MQTT,
		auth:           deps.Auth,
		db:             deps.DB,
		commandTimeout: timeout,
		version:        deps.Version,
		startTime:      time.Now(),
	}, nil
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
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
