// Package dispatch delivers feature batches to the ingestion endpoint.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	feedv1 "github.com/autopeer-io/fleetrelay/api/feed/v1"
	"github.com/autopeer-io/fleetrelay/internal/relay/token"
	"github.com/autopeer-io/fleetrelay/pkg/log"
)

// Mode selects how batches are delivered. It is fixed for the lifetime of a
// Dispatcher.
type Mode string

const (
	// ModeStream writes every batch to one long-lived client stream.
	ModeStream Mode = "stream"

	// ModeUnary issues one call per batch and waits for its response.
	ModeUnary Mode = "unary"
)

// DefaultCloseTimeout bounds the wait for the final stream response.
const DefaultCloseTimeout = 10 * time.Second

var (
	// ErrDispatch wraps every delivery failure.
	ErrDispatch = errors.New("dispatch failed")

	// ErrSessionClosed is returned by Send once Close has been called.
	ErrSessionClosed = fmt.Errorf("%w: session closed", ErrDispatch)

	// ErrSessionNotOpen is returned by Send before Open.
	ErrSessionNotOpen = fmt.Errorf("%w: session not open", ErrDispatch)
)

var streamDesc = &grpc.StreamDesc{
	StreamName:    "Stream",
	ClientStreams: true,
}

// Config holds the collaborators of a Dispatcher. Tokens may be nil when the
// endpoint does not require authentication.
type Config struct {
	Mode     Mode
	Tokens   token.Source
	Reporter Reporter
	Logger   log.Logger

	// CloseTimeout bounds the wait for the final response when a stream is
	// completed. Zero means DefaultCloseTimeout.
	CloseTimeout time.Duration
}

// Dispatcher sends batches in the configured mode. Send, Open and Close are
// serialized.
type Dispatcher struct {
	conn     grpc.ClientConnInterface
	mode     Mode
	tokens   token.Source
	reporter Reporter
	logger   log.Logger

	closeTimeout time.Duration

	mu      sync.Mutex
	session *session
	stream  *clientStream

	// ctx bounds every stream opened by the dispatcher.
	ctx    context.Context
	cancel context.CancelFunc
}

type clientStream struct {
	grpc.ClientStream
	cancel context.CancelFunc
	bearer string
}

// New returns a Dispatcher in the NotCreated state.
func New(conn grpc.ClientConnInterface, cfg Config) *Dispatcher {
	if cfg.Mode == "" {
		cfg.Mode = ModeStream
	}
	if cfg.Logger == nil {
		cfg.Logger = log.WithName("dispatch")
	}
	if cfg.Reporter == nil {
		cfg.Reporter = &LogReporter{Logger: cfg.Logger}
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultCloseTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		conn:     conn,
		mode:     cfg.Mode,
		tokens:   cfg.Tokens,
		reporter: cfg.Reporter,
		logger:   cfg.Logger.WithValues("mode", cfg.Mode),
		ctx:      ctx,
		cancel:   cancel,

		closeTimeout: cfg.CloseTimeout,
	}
	d.session = newSession(func(from, to string) {
		d.logger.Debug("Dispatch session transition", "from", from, "to", to)
	}, canOpen)
	return d
}

// canOpen refuses to open a session for a caller that is already gone.
func canOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("caller done before open: %w", err)
	}
	return nil
}

// Mode returns the delivery mode.
func (d *Dispatcher) Mode() Mode { return d.mode }

// State returns the session state.
func (d *Dispatcher) State() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session.current()
}

// Ready reports whether Send is accepted.
func (d *Dispatcher) Ready() bool {
	return d.State() == StateOpen
}

// Open moves the session to Open. Without authentication the stream is
// established right away; otherwise it is opened by the first Send, once a
// token is at hand. A stream that cannot be opened yet is retried on Send.
func (d *Dispatcher) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.session.fire(ctx, EventOpen); err != nil {
		return fmt.Errorf("open dispatch session: %w", err)
	}

	if d.mode == ModeStream && d.tokens == nil {
		if err := d.openStream(""); err != nil {
			d.logger.Warn("Failed to open ingestion stream, will retry on send", "error", err.Error())
		}
	}
	return nil
}

// Send delivers one batch. Empty batches are ignored. Every other call is
// reported exactly once, and a failed batch is dropped.
func (d *Dispatcher) Send(ctx context.Context, batch feedv1.Batch) error {
	if len(batch) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(batch)
	switch st := d.session.current(); st {
	case StateOpen:
	case StateNotCreated:
		d.reporter.Failed(d.mode, n, ReasonClosed, ErrSessionNotOpen)
		return ErrSessionNotOpen
	default:
		d.reporter.Failed(d.mode, n, ReasonClosed, ErrSessionClosed)
		return ErrSessionClosed
	}

	var bearer string
	if d.tokens != nil {
		cred, err := d.tokens.EnsureValid(ctx)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrDispatch, err)
			d.reporter.Failed(d.mode, n, ReasonToken, err)
			return err
		}
		bearer = cred.Bearer()
	}

	req := batch.Request()
	var (
		response string
		err      error
	)
	if d.mode == ModeStream {
		err = d.write(ctx, bearer, req)
	} else {
		response, err = d.call(ctx, bearer, req)
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDispatch, err)
		d.reporter.Failed(d.mode, n, ReasonTransport, err)
		return err
	}

	d.reporter.Sent(d.mode, n, response)
	return nil
}

func (d *Dispatcher) call(ctx context.Context, bearer string, req any) (string, error) {
	if bearer != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", bearer)
	}

	resp := feedv1.NewResponse()
	if err := d.conn.Invoke(ctx, feedv1.SendMethod, req, resp); err != nil {
		return "", err
	}
	return feedv1.ResponseMessage(resp), nil
}

func (d *Dispatcher) write(ctx context.Context, bearer string, req any) error {
	// Stream metadata is fixed when it opens.
	if d.stream != nil && d.stream.bearer != bearer {
		d.logger.Info("Bearer token rotated, reopening ingestion stream")
		if err := d.finishStream(ctx); err != nil {
			d.logger.Warn("Previous ingestion stream did not close cleanly", "error", err.Error())
		}
	}
	if d.stream == nil {
		if err := d.openStream(bearer); err != nil {
			return err
		}
	}

	err := d.stream.SendMsg(req)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		// The stream was terminated, the status is surfaced by RecvMsg.
		if rerr := d.stream.RecvMsg(feedv1.NewResponse()); rerr != nil {
			err = rerr
		}
	}
	d.stream.cancel()
	d.stream = nil
	return fmt.Errorf("write to stream: %w", err)
}

func (d *Dispatcher) openStream(bearer string) error {
	ctx, cancel := context.WithCancel(d.ctx)
	if bearer != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", bearer)
	}

	cs, err := d.conn.NewStream(ctx, streamDesc, feedv1.StreamMethod)
	if err != nil {
		cancel()
		return fmt.Errorf("open stream: %w", err)
	}

	d.stream = &clientStream{ClientStream: cs, cancel: cancel, bearer: bearer}
	d.logger.Info("Ingestion stream opened")
	return nil
}

// finishStream half-closes the current stream and waits for the final
// response.
func (d *Dispatcher) finishStream(ctx context.Context) error {
	s := d.stream
	d.stream = nil
	defer s.cancel()

	ctx, cancel := context.WithTimeout(ctx, d.closeTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	if err := s.CloseSend(); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}

	resp := feedv1.NewResponse()
	if err := s.RecvMsg(resp); err != nil {
		d.logger.Warn("Ingestion stream closed without response", "error", err.Error())
		return fmt.Errorf("close stream: %w", err)
	}

	d.logger.Info("The gRPC stream has been closed",
		"response", feedv1.ResponseMessage(resp), "code", feedv1.ResponseCode(resp))
	return nil
}

// Close completes the stream, if any, and moves the session to Closed. Any
// later Send fails with ErrSessionClosed. Close is idempotent.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session.current() == StateClosed {
		return nil
	}
	if err := d.session.fire(ctx, EventStop); err != nil {
		return fmt.Errorf("stop dispatch session: %w", err)
	}

	var err error
	if d.stream != nil {
		err = d.finishStream(ctx)
	}
	d.cancel()

	if ferr := d.session.fire(ctx, EventClosed); ferr != nil {
		return errors.Join(err, fmt.Errorf("close dispatch session: %w", ferr))
	}
	return err
}
