package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/patient-transport/internal/scheduling"
)

var kindCodes = map[scheduling.Kind]codes.Code{
	scheduling.KindValidation:        codes.InvalidArgument,
	scheduling.KindPolicy:            codes.FailedPrecondition,
	scheduling.KindIneligible:        codes.FailedPrecondition,
	scheduling.KindBusy:              codes.AlreadyExists,
	scheduling.KindDoubleBooked:      codes.AlreadyExists,
	scheduling.KindIncompatible:      codes.FailedPrecondition,
	scheduling.KindInvalidTransition: codes.Aborted,
	scheduling.KindNotFound:          codes.NotFound,
	scheduling.KindPersistence:       codes.Internal,
}

// toStatus turns a scheduling failure into a gRPC status whose details carry the
// {ok:false, error_kind, code, message, conflicts} envelope.
func toStatus(err error) error {
	se := scheduling.AsError(err)

	code, ok := kindCodes[se.Kind]
	if !ok {
		code = codes.Internal
	}
	st := status.New(code, se.Message)

	details, encErr := encode(errorViewOf(se))
	if encErr != nil {
		return st.Err()
	}
	withDetails, detErr := st.WithDetails(details)
	if detErr != nil {
		return st.Err()
	}
	return withDetails.Err()
}

// UnaryLogger logs every call with its method, status code and latency.
func UnaryLogger(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		started := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		ev := log.Debug()
		switch code {
		case codes.OK:
		case codes.Internal, codes.Unknown:
			ev = log.Error().Err(err)
		default:
			ev = log.Info()
		}
		ev.Str("method", info.FullMethod).
			Str("grpc_code", code.String()).
			Dur("latency", time.Since(started)).
			Msg("grpc call")
		return resp, err
	}
}
