package app

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/signify/internal/glove"
	"github.com/ayusman/signify/internal/log"
)

// ErrAlreadyRunning is returned when Run is called twice concurrently.
var ErrAlreadyRunning = errors.New("pipeline already running")

// Run starts acquisition and the classification loop and blocks until ctx
// is cancelled or acquisition fails. Acquisition has closed both ports by
// the time Run returns. Cancellation is not an error.
func (a *App) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.running.Store(false)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.reader.Run(ctx)
	})
	g.Go(func() error {
		return a.loop(ctx)
	})

	log.Info("Pipeline started")
	err := g.Wait()
	if err != nil {
		log.Errorw("Pipeline stopped", "error", err)
		return err
	}
	log.Info("Pipeline stopped")
	return nil
}

// IsRunning reports whether Run is active.
func (a *App) IsRunning() bool {
	return a.running.Load()
}

// loop processes one frame per iteration, then discards the backlog so the
// next iteration sees the freshest frame.
func (a *App) loop(ctx context.Context) error {
	for {
		f, err := a.queue.Next(ctx)
		if err != nil {
			return nil
		}

		if err := a.process(ctx, f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		a.queue.Clear()
	}
}

// process runs one orchestrator step for frame f:
//  1. Frames under the calibration threshold go to the gate only.
//  2. Static classification, dispatched immediately on a match.
//  3. The sample feeds the aggregator; a full window is classified as a
//     dynamic gesture.
func (a *App) process(ctx context.Context, f glove.Frame) error {
	a.processed.Add(1)
	sample := glove.SampleFromFrame(f)

	if a.gate.NeedsCalibration(f) {
		a.aggregator.Reset()
		return a.gate.Calibrate(ctx, f)
	}

	if !a.IsEnabled() {
		return nil
	}

	clf := a.Classifier()

	if r, ok, err := clf.ClassifyStatic(sample); err != nil {
		log.Warnw("Static classification failed", "error", err)
	} else if ok {
		a.dispatcher.Dispatch(r)
	}

	if features, full := a.aggregator.Add(sample); full {
		if r, ok, err := clf.ClassifyDynamic(features); err != nil {
			log.Warnw("Dynamic classification failed", "error", err)
		} else if ok {
			a.dispatcher.Dispatch(r)
		}
	}

	return nil
}
