// Package output writes fetched telemetry to local sinks.
package output

import (
	"context"
	"errors"
	"time"

	"github.com/autopeer-io/fleetrelay/internal/relay/core/model"
)

// Writer consumes the records of one cycle.
type Writer interface {
	Write(ctx context.Context, res *model.Result) error
}

// Multi writes to every writer and joins their errors.
type Multi []Writer

func (m Multi) Write(ctx context.Context, res *model.Result) error {
	var errs []error
	for _, w := range m {
		if err := w.Write(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const timeLayout = "2006-01-02 15:04:05.000"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
