// Package viewer renders each subscription result as one bar line.
package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"codeberg.org/mutker/pressurebar/internal/errors"
	"codeberg.org/mutker/pressurebar/internal/graphql"
	"codeberg.org/mutker/pressurebar/internal/logger"
	"codeberg.org/mutker/pressurebar/internal/metrics"
	"codeberg.org/mutker/pressurebar/internal/telemetry"
)

// Source delivers subscription results to a handler in arrival order.
// *graphql.Client implements it.
type Source interface {
	Subscribe(req graphql.Request, handler graphql.Handler) (string, error)
	Run(ctx context.Context) error
}

type Viewer struct {
	out       io.Writer
	renderer  *telemetry.Renderer
	collector metrics.Collector
}

func New(out io.Writer, renderer *telemetry.Renderer, collector metrics.Collector) *Viewer {
	return &Viewer{
		out:       out,
		renderer:  renderer,
		collector: collector,
	}
}

// Run starts the WatchHardware subscription on src and prints one line per
// snapshot. It returns nil when the stream ends normally or ctx is cancelled,
// and the first transport, decode or write error otherwise.
func (v *Viewer) Run(ctx context.Context, src Source) error {
	if _, err := src.Subscribe(graphql.Request{Query: telemetry.WatchHardware}, v.Handle); err != nil {
		v.collector.ObserveError(string(errors.CodeOf(err)))
		return err
	}

	if err := src.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		v.collector.ObserveError(string(errors.CodeOf(err)))
		return err
	}

	return nil
}

// Handle decodes one result and prints its bar line.
func (v *Viewer) Handle(data json.RawMessage) error {
	snapshot, err := telemetry.Decode(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintln(v.out, v.renderer.Render(snapshot)); err != nil {
		return errors.New().Wrap(errors.ErrWriteLine, err)
	}

	v.collector.ObserveReading(snapshot.PressureFullscale, telemetry.Fraction(snapshot.PressureFullscale))
	logger.Debug().Uint16("raw", snapshot.PressureFullscale).Msg("Snapshot rendered")

	return nil
}
