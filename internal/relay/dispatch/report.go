package dispatch

import (
	"github.com/autopeer-io/fleetrelay/internal/pkg/metrics"
	"github.com/autopeer-io/fleetrelay/pkg/log"
)

// Failure reasons reported for dropped batches.
const (
	ReasonToken     = "token"
	ReasonClosed    = "closed"
	ReasonTransport = "transport"
)

// Reporter receives the outcome of every non-empty Send exactly once.
type Reporter interface {
	Sent(mode Mode, features int, response string)
	Failed(mode Mode, features int, reason string, err error)
}

// LogReporter writes one status line per outcome and updates the send metrics.
type LogReporter struct {
	Logger log.Logger
	Target string
	Path   string
}

var _ Reporter = (*LogReporter)(nil)

func (r *LogReporter) logger() log.Logger {
	if r.Logger == nil {
		return log.WithName("dispatch")
	}
	return r.Logger
}

func (r *LogReporter) Sent(mode Mode, features int, response string) {
	metrics.FeaturesSentTotal.WithLabelValues(string(mode)).Add(float64(features))

	kv := []any{"mode", mode, "features", features, "target", r.Target, "path", r.Path}
	if mode == ModeStream {
		r.logger().Info("Streamed GPS records", kv...)
		return
	}
	r.logger().Info("Sent GPS records", append(kv, "response", response)...)
}

func (r *LogReporter) Failed(mode Mode, features int, reason string, err error) {
	metrics.SendFailuresTotal.WithLabelValues(string(mode), reason).Inc()
	r.logger().Error(err, "Dropped GPS records", "mode", mode, "features", features, "reason", reason, "target", r.Target, "path", r.Path)
}
