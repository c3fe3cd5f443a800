package relay

import (
	"context"
	"errors"

	feedv1 "github.com/autopeer-io/fleetrelay/api/feed/v1"
	"github.com/autopeer-io/fleetrelay/internal/relay/core/model"
	"github.com/autopeer-io/fleetrelay/internal/relay/feed"
	"github.com/autopeer-io/fleetrelay/internal/relay/output"
	"github.com/autopeer-io/fleetrelay/internal/relay/poller"
	"github.com/autopeer-io/fleetrelay/internal/relay/token"
	"github.com/autopeer-io/fleetrelay/internal/relay/transform"
	"github.com/autopeer-io/fleetrelay/pkg/log"
)

// Cycle failure kinds.
const (
	KindFetch     = "fetch"
	KindTransform = "transform"
	KindToken     = "token"
	KindDispatch  = "dispatch"
)

// Sender delivers one batch.
type Sender interface {
	Send(ctx context.Context, batch feedv1.Batch) error
}

// Pipeline is the work of one poll cycle: fetch, write local outputs,
// transform the GPS records and send them.
type Pipeline struct {
	source feed.Source
	output output.Writer
	sender Sender
	logger log.Logger

	// cursors is only touched by WorkCycle, which never runs concurrently.
	cursors model.Cursors
}

var _ poller.Worker = (*Pipeline)(nil)

// NewPipeline returns a Pipeline. output may be nil.
func NewPipeline(source feed.Source, out output.Writer, sender Sender, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.WithName("relay")
	}
	return &Pipeline{
		source:  source,
		output:  out,
		sender:  sender,
		logger:  logger,
		cursors: model.Cursors{},
	}
}

// Cursors returns a copy of the cursors the next fetch starts from.
func (p *Pipeline) Cursors() model.Cursors {
	return p.cursors.Clone()
}

func (p *Pipeline) WorkCycle(ctx context.Context) error {
	res, next, err := p.source.Fetch(ctx, p.cursors)
	if err != nil {
		return &poller.CycleError{Kind: KindFetch, Err: err}
	}
	p.cursors = next

	if p.output != nil && res.Len() > 0 {
		if err := p.output.Write(ctx, res); err != nil {
			p.logger.Error(err, "Failed to write local outputs")
		}
	}

	if res == nil || len(res.GPSRecords) == 0 {
		return nil
	}

	batch, err := transform.ToBatch(res.GPSRecords)
	if err != nil {
		return &poller.CycleError{Kind: KindTransform, Err: err}
	}

	p.logger.Info("Sending GPS records", "count", len(batch))
	if err := p.sender.Send(ctx, batch); err != nil {
		kind := KindDispatch
		if errors.Is(err, token.ErrUnavailable) {
			kind = KindToken
		}
		return &poller.CycleError{Kind: kind, Err: err}
	}
	return nil
}
