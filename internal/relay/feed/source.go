// Package feed reads telemetry from the upstream fleet-tracking feed.
package feed

import (
	"context"
	"errors"

	"github.com/autopeer-io/fleetrelay/internal/relay/core/model"
)

// ErrFetch wraps every failure to read from the feed.
var ErrFetch = errors.New("feed fetch failed")

// Source returns the records published since cursors, along with the cursors
// to pass on the next call. On error the returned cursors equal the input.
type Source interface {
	Fetch(ctx context.Context, cursors model.Cursors) (*model.Result, model.Cursors, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, cursors model.Cursors) (*model.Result, model.Cursors, error)

func (f SourceFunc) Fetch(ctx context.Context, cursors model.Cursors) (*model.Result, model.Cursors, error) {
	return f(ctx, cursors)
}

func enabled(categories []model.Category, c model.Category) bool {
	for _, x := range categories {
		if x == c {
			return true
		}
	}
	return false
}
