package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/umpyre/beancounter/internal/core"
)

// UnaryServerInterceptor logs each call and increments the per-method,
// per-outcome request counter named in spec.md §6's metrics section.
func UnaryServerInterceptor(services *core.Services) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		resp, err := handler(ctx, req)

		outcome := "ok"
		if err != nil {
			outcome = status.Code(err).String()
		}
		if services.Metrics != nil {
			services.Metrics.RPCRequestsTotal.WithLabelValues(info.FullMethod, outcome).Inc()
		}
		if err != nil {
			services.Log.Warn().Err(err).Str("method", info.FullMethod).Msg("rpc call failed")
		} else {
			services.Log.Debug().Str("method", info.FullMethod).Msg("rpc call completed")
		}
		return resp, err
	}
}

// toStatus maps a core error to a grpc status, per spec.md §7's error
// policy: NotFound -> NotFound, InvalidUuid/BadArguments -> InvalidArgument,
// StripeError -> FailedPrecondition (carrying the processor's message),
// any other store error -> Internal.
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, core.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, core.ErrInvalidUUID):
		return status.Error(codes.InvalidArgument, "invalid client id")
	case errors.Is(err, core.ErrBadArguments), errors.Is(err, core.ErrInvalidAmount):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, core.ErrDuplicatePayment):
		return status.Error(codes.AlreadyExists, "duplicate payment")
	case errors.Is(err, core.ErrConnectNotLinked):
		return status.Error(codes.FailedPrecondition, "connect account not linked")
	}

	var stripeErr *core.StripeError
	if errors.As(err, &stripeErr) {
		return status.Error(codes.FailedPrecondition, stripeErr.Error())
	}

	var storeErr *core.StoreError
	if errors.As(err, &storeErr) {
		return status.Error(codes.Internal, storeErr.Error())
	}

	return status.Error(codes.Internal, err.Error())
}
