package receiver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/oshokin/sia-bridge/internal/logger"
)

// Server accepts panel connections and hands each one to the handler on its
// own goroutine.
type Server struct {
	handler *Handler
}

// NewServer creates a server around the frame pipeline.
func NewServer(handler *Handler) *Server {
	return &Server{handler: handler}
}

// Serve accepts connections until the context is canceled, then waits for
// in-flight connections to finish. The listener is closed before Serve
// returns.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	// Cancellation unblocks Accept by closing the listener.
	stop := context.AfterFunc(ctx, func() {
		_ = lis.Close()
	})
	defer stop()

	var wg sync.WaitGroup

	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Info(ctx, "Listener stopped, draining connections")
				wg.Wait()
				logger.Info(ctx, "All panel connections drained")

				return nil
			}

			wg.Wait()

			return fmt.Errorf("accept: %w", err)
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			s.handler.Handle(ctx, conn)
		}()
	}
}
