// Package rpc is BeanCounter's RPC façade: hand-written request/response
// structs and methods on *Server that dispatch to internal/ledger,
// internal/payment, internal/topup, and internal/connect and map their
// results to grpc codes/status, grounded on internal/grpc/server.go's
// Server{mu, grpcServer, ...} shape — adapted to the accounting domain
// with no protoc-generated service stubs, mirroring the teacher's own
// lack of ServiceDesc registration.
package rpc

import (
	"fmt"
	"net"
)

// ServerConfig holds configuration for the RPC server.
type ServerConfig struct {
	// Address is the address to listen on (e.g., "0.0.0.0:7221").
	Address string

	// MaxRecvMsgSize is the maximum message size in bytes the server can receive.
	MaxRecvMsgSize int

	// MaxSendMsgSize is the maximum message size in bytes the server can send.
	MaxSendMsgSize int
}

// DefaultServerConfig returns a ServerConfig with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:        "0.0.0.0:7221",
		MaxRecvMsgSize: 4 * 1024 * 1024,
		MaxSendMsgSize: 4 * 1024 * 1024,
	}
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}
	host, port, err := net.SplitHostPort(c.Address)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}
	if host == "" && port == "" {
		return fmt.Errorf("address must specify at least a port")
	}
	if c.MaxRecvMsgSize <= 0 {
		return fmt.Errorf("max_recv_msg_size must be positive")
	}
	if c.MaxSendMsgSize <= 0 {
		return fmt.Errorf("max_send_msg_size must be positive")
	}
	return nil
}
