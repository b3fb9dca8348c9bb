package rpc

import (
	"errors"
	"net"
	"sync"

	"google.golang.org/grpc"

	"github.com/umpyre/beancounter/internal/core"
)

// Server is BeanCounter's RPC server, dispatching each operation in
// the spec's RPC surface to the core packages via the Services it was
// constructed with.
type Server struct {
	mu sync.RWMutex

	grpcServer *grpc.Server
	services   *core.Services
	config     *ServerConfig
	listener   net.Listener
	running    bool
}

// NewServer creates a new RPC server with the given configuration and
// Services.
func NewServer(cfg *ServerConfig, services *core.Services) (*Server, error) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.MaxSendMsgSize),
		grpc.UnaryInterceptor(UnaryServerInterceptor(services)),
	}

	return &Server{
		grpcServer: grpc.NewServer(opts...),
		services:   services,
		config:     cfg,
	}, nil
}

// Start starts the RPC server and begins accepting connections. This
// method blocks until the server is stopped or an error occurs.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	return s.grpcServer.Serve(listener)
}

// StartAsync starts the RPC server in a goroutine and returns immediately.
func (s *Server) StartAsync() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	go func() {
		if err := s.grpcServer.Serve(listener); err != nil {
			s.services.Log.Error().Err(err).Msg("rpc server stopped serving")
		}
	}()
	return nil
}

// Stop gracefully stops the RPC server.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.grpcServer.GracefulStop()
	s.running = false
}

// StopNow immediately stops the RPC server without waiting for connections.
func (s *Server) StopNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.grpcServer.Stop()
	s.running = false
}

// IsRunning returns true if the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the address the server is listening on, or empty if
// it is not running.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GetGRPCServer returns the underlying grpc.Server so the health
// endpoint and any future generated service stubs can be registered
// against it.
func (s *Server) GetGRPCServer() *grpc.Server {
	return s.grpcServer
}
