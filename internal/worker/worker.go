// Package worker triggers the item pipeline without a lid toggle: on a timer
// for unattended bins, or on an Enter key press for bench testing.
package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smarttrash/smarttrash/internal/engine"
	"github.com/smarttrash/smarttrash/internal/model"
)

// Runner runs the pipeline once.
type Runner interface {
	Run(ctx context.Context) (*model.Item, error)
}

// Worker runs the pipeline every interval.
type Worker struct {
	runner   Runner
	interval time.Duration
}

// New creates a new Worker.
func New(runner Runner, interval time.Duration) *Worker {
	return &Worker{runner: runner, interval: interval}
}

// Start begins the trigger loop. It blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("worker started")
	for {
		w.sleep(ctx)
		select {
		case <-ctx.Done():
			log.Info().Msg("worker stopped")
			return
		default:
		}
		w.trigger(ctx)
	}
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.interval):
	}
}

// trigger runs the pipeline once and logs the outcome.
func (w *Worker) trigger(ctx context.Context) (*model.Item, error) {
	item, err := w.runner.Run(ctx)
	switch {
	case err == nil:
		log.Info().Int("id", item.ID).Str("category", item.WasteCategory).Msg("triggered capture stored")
	case item != nil:
		log.Warn().Err(err).Int("id", item.ID).Msg("triggered capture stored with warning")
	case errors.Is(err, engine.ErrNoObjects):
		log.Info().Msg("triggered capture found nothing")
	default:
		log.Error().Str("step", failedStep(err)).Err(err).Msg("triggered capture failed")
	}
	return item, err
}

// stepNamer is implemented by errors that carry a pipeline step name.
type stepNamer interface {
	StepName() string
}

func failedStep(err error) string {
	var sn stepNamer
	if errors.As(err, &sn) {
		return sn.StepName()
	}
	return "unknown"
}

// Interactive runs the pipeline each time a line is read from in and writes
// a short report to out. It returns when in is exhausted or ctx is done.
func Interactive(ctx context.Context, runner Runner, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := New(runner, 0)
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	prompt := func() { fmt.Fprintln(out, "Press Enter to capture an item (type q to quit)") }
	prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if strings.EqualFold(strings.TrimSpace(line), "q") {
				return nil
			}
			item, err := w.trigger(ctx)
			report(out, item, err)
			prompt()
		}
	}
}

func report(out io.Writer, item *model.Item, err error) {
	if item != nil {
		fmt.Fprintf(out, "#%d %s: %s (production %s, dispose: %s)\n",
			item.ID,
			strings.Join(item.DetectedObjects, ", "),
			item.WasteCategory,
			item.ProductionEmissions,
			item.RecommendedDisposal,
		)
	}
	switch {
	case err == nil:
	case item != nil:
		fmt.Fprintf(out, "warning: %v\n", err)
	default:
		fmt.Fprintf(out, "nothing stored: %v\n", err)
	}
}
