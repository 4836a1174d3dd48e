// Package server exposes the normalized meteorite dataset over HTTP: record
// listings, aggregate tables, a DataTables-protocol endpoint, refresh
// controls, and a WebSocket feed of refresh lifecycle events.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/aphelion-labs/meteorid/config"
	"github.com/aphelion-labs/meteorid/dataset"
	"github.com/aphelion-labs/meteorid/errors"
	"github.com/aphelion-labs/meteorid/refresh"
)

// ServerState tracks the lifecycle phase of the server.
type ServerState int32

const (
	ServerStateRunning ServerState = iota
	ServerStateDraining
	ServerStateStopped
)

// ShutdownTimeout bounds how long Stop waits for goroutines to drain.
const ShutdownTimeout = 10 * time.Second

// Server serves the dataset snapshot and coordinates WebSocket clients.
type Server struct {
	holder     *dataset.Holder
	controller *refresh.Controller
	journal    *refresh.Journal
	cfg        *config.Config
	logger     *zap.SugaredLogger

	mux        *http.ServeMux
	httpServer *http.Server

	clients    map[*Client]bool
	broadcast  chan interface{}
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	startedAt time.Time

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	state  atomic.Int32
}

// NewServer wires a server over an already-bootstrapped refresh controller.
// The journal may be nil; the journal endpoint then reports unavailable.
func NewServer(holder *dataset.Holder, controller *refresh.Controller,
	journal *refresh.Journal, cfg *config.Config, log *zap.SugaredLogger) (*Server, error) {
	if holder == nil {
		return nil, errors.New("snapshot holder cannot be nil")
	}
	if controller == nil {
		return nil, errors.New("refresh controller cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		holder:     holder,
		controller: controller,
		journal:    journal,
		cfg:        cfg,
		logger:     log,
		mux:        http.NewServeMux(),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan interface{}, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		startedAt:  time.Now(),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.setupHTTPRoutes()
	controller.SetBroadcaster(s)
	return s, nil
}

// Handler returns the server's HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// getState returns the current server state
func (s *Server) getState() ServerState {
	return ServerState(s.state.Load())
}

// setState atomically updates the server state
func (s *Server) setState(newState ServerState) {
	s.state.Store(int32(newState))
	s.logger.Infow("Server state changed", "new_state", stateString(newState))
}

// stateString returns human-readable state name
func stateString(state ServerState) string {
	switch state {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Start binds the listener and serves until Stop is called. If the requested
// port is taken the next free port is used.
func (s *Server) Start(port int) error {
	// Start the WebSocket hub
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runHub()
	}()

	actualPort, err := findAvailablePort(port)
	if err != nil {
		return errors.Wrap(err, "failed to find available port")
	}
	if actualPort != port {
		s.logger.Infow("Port in use, using alternative",
			"requested_port", port,
			"actual_port", actualPort,
		)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", actualPort),
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.setState(ServerStateRunning)
	s.logger.Infow("Server ready",
		"url", fmt.Sprintf("http://localhost:%d", actualPort),
		"snapshot_present", s.holder.Current() != nil,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Stop drains WebSocket clients, shuts the HTTP server down gracefully and
// waits for background goroutines.
func (s *Server) Stop() error {
	s.logger.Infow("Initiating server shutdown")
	s.setState(ServerStateDraining)

	// Close client connections first so readPump exits before the context
	// cancellation takes the hub down
	s.mu.Lock()
	clientsToClose := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clientsToClose = append(clientsToClose, client)
		delete(s.clients, client)
	}
	s.mu.Unlock()

	if len(clientsToClose) > 0 {
		s.logger.Infow("Closing client connections", "count", len(clientsToClose))
		for _, client := range clientsToClose {
			client.conn.Close()
		}
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warnw("HTTP server shutdown error", "error", err)
		}
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infow("All goroutines stopped cleanly")
	case <-time.After(ShutdownTimeout):
		s.logger.Warnw("Goroutine shutdown timed out, forcing exit",
			"timeout", ShutdownTimeout,
		)
	}

	s.setState(ServerStateStopped)
	return nil
}

// findAvailablePort returns port if free, otherwise probes upward.
func findAvailablePort(port int) (int, error) {
	for candidate := port; candidate < port+100; candidate++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", candidate))
		if err != nil {
			continue
		}
		ln.Close()
		return candidate, nil
	}
	return 0, errors.Newf("no available port in range %d-%d", port, port+99)
}
