// Package relay wires the feed, the polling loop and the dispatcher into the
// fleetrelay process.
package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/fleetrelay/internal/relay/dispatch"
	"github.com/autopeer-io/fleetrelay/internal/relay/poller"
	httpserver "github.com/autopeer-io/fleetrelay/internal/relay/server/http"
	"github.com/autopeer-io/fleetrelay/internal/relay/storage"
	"github.com/autopeer-io/fleetrelay/pkg/log"
)

// starter is implemented by feed sources that hold a connection.
type starter interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

// Relay is the running process.
type Relay struct {
	loop       *poller.Loop
	continuous bool
	dispatcher *dispatch.Dispatcher
	conn       *dispatch.Conn
	httpServer *httpserver.Server
	starter    starter
	bucket     storage.Provider
	logger     log.Logger
}

// Stop asks the relay to exit after the in-flight cycle.
func (r *Relay) Stop() {
	r.loop.RequestStop()
}

// Run polls until ctx is done or Stop is called, or once when not continuous.
// On the way out the in-flight cycle completes, the dispatcher is closed and
// then the connection.
func (r *Relay) Run(ctx context.Context) error {
	ctx = logr.NewContext(ctx, r.logger.Logr())
	defer func() {
		if err := r.conn.Close(); err != nil {
			r.logger.Error(err, "Failed to close gRPC connection")
		}
	}()

	if r.starter != nil {
		if err := r.starter.Start(ctx); err != nil {
			return err
		}
		defer r.starter.Stop(context.Background())
	}

	if r.bucket != nil {
		if err := r.bucket.CheckBucket(ctx); err != nil {
			return fmt.Errorf("archive bucket unavailable: %w", err)
		}
	}

	if err := r.dispatcher.Open(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	auxCtx, stopAux := context.WithCancel(gctx)
	defer stopAux()

	g.Go(func() error {
		defer stopAux()
		err := r.loop.Run(gctx, r.continuous)
		if cerr := r.dispatcher.Close(context.WithoutCancel(gctx)); cerr != nil {
			r.logger.Error(cerr, "Failed to close dispatcher")
			err = errors.Join(err, cerr)
		}
		return err
	})

	g.Go(func() error {
		return r.conn.Monitor(auxCtx)
	})

	if r.httpServer != nil {
		g.Go(func() error {
			return r.httpServer.Start(auxCtx)
		})
	}

	r.logger.Info("Relay started", "mode", r.dispatcher.Mode(), "continuous", r.continuous)
	err := g.Wait()
	r.logger.Info("Relay stopped")
	return err
}
