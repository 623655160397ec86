package utils

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// ServeGRPC listens on port and serves s until ctx is cancelled, then stops
// gracefully. Serve errors are delivered on the returned channel, which is
// closed when the server has stopped.
func ServeGRPC(ctx context.Context, s *grpc.Server, port int, log logger.Logger) (<-chan error, net.Addr, error) {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		log.Info("Starting gRPC server", logger.StringField("address", lis.Addr().String()))
		if err := s.Serve(lis); err != nil {
			errs <- err
		}
	}()
	go func() {
		<-ctx.Done()
		log.Info("Stopping gRPC server")
		s.GracefulStop()
	}()
	return errs, lis.Addr(), nil
}
