package rpc

import (
	"context"
)

// CheckResponse mirrors original_source/src/service.rs's check() health
// endpoint (SPEC_FULL.md §12), returning Ready once the store accepts
// a connection.
type CheckResponse struct {
	Status string
}

// Check pings the store and reports readiness.
func (s *Server) Check(ctx context.Context) (*CheckResponse, error) {
	if err := s.services.Store.Ping(ctx); err != nil {
		return nil, toStatus(&storeUnavailable{cause: err})
	}
	return &CheckResponse{Status: "Ready"}, nil
}

type storeUnavailable struct {
	cause error
}

func (e *storeUnavailable) Error() string { return "store unavailable: " + e.cause.Error() }
func (e *storeUnavailable) Unwrap() error { return e.cause }
