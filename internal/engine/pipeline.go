package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/smarttrash/smarttrash/internal/model"
)

// ErrNoItem is matched by every error that means the run stored nothing.
var ErrNoItem = errors.New("no item produced")

// Stage is the position of a run in the capture-to-persist sequence.
type Stage int32

// Pipeline stages, in execution order.
const (
	StageIdle Stage = iota
	StageCapturing
	StageDetecting
	StageAnalyzing
	StageNormalizing
	StagePersisting
	StageDone
)

var stageNames = [...]string{
	StageIdle:        "idle",
	StageCapturing:   "capturing",
	StageDetecting:   "detecting",
	StageAnalyzing:   "analyzing",
	StageNormalizing: "normalizing",
	StagePersisting:  "persisting",
	StageDone:        "done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// MarshalText renders the stage by name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Pipeline turns one discard into one stored item. Runs are serialized.
type Pipeline struct {
	steps    []Step
	observer func(Stage)
	notifier Notifier

	mu    sync.Mutex
	stage atomic.Int32
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithObserver registers fn to be called on every stage transition.
func WithObserver(fn func(Stage)) PipelineOption {
	return func(p *Pipeline) { p.observer = fn }
}

// WithNotifier publishes every stored item to n.
func WithNotifier(n Notifier) PipelineOption {
	return func(p *Pipeline) { p.notifier = n }
}

// NewPipeline creates a pipeline that executes steps in order.
func NewPipeline(steps []Step, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{steps: steps}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stage returns the stage of the run in progress, or StageIdle.
func (p *Pipeline) Stage() Stage {
	return Stage(p.stage.Load())
}

// Run executes all steps once. On abort it returns a *StepError that matches
// ErrNoItem and nothing is stored. If the item was stored in memory but could
// not be written to disk, the item is returned together with the error.
func (p *Pipeline) Run(ctx context.Context) (*model.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.enter(StageIdle)
	sc := &StepContext{}
	for _, step := range p.steps {
		p.enter(step.Stage())
		if err := step.Run(ctx, sc); err != nil {
			log.Warn().Err(err).Str("stage", step.Stage().String()).Msg("pipeline aborted")
			p.enter(StageIdle)
			return nil, &StepError{Step: step.Stage().String(), Err: err}
		}
	}
	p.enter(StageDone)

	if sc.Item == nil {
		p.enter(StageIdle)
		return nil, &StepError{Step: StageDone.String(), Err: errors.New("no persist step configured")}
	}

	log.Info().
		Int("id", sc.Item.ID).
		Strs("labels", sc.Item.DetectedObjects).
		Str("category", sc.Item.WasteCategory).
		Msg("item recorded")
	if p.notifier != nil {
		p.notifier.Publish(sc.Item.Clone())
	}
	p.enter(StageIdle)
	return sc.Item, sc.Warning
}

func (p *Pipeline) enter(s Stage) {
	p.stage.Store(int32(s))
	if p.observer != nil {
		p.observer(s)
	}
}

// StepError wraps an error with the step name that failed. It matches both
// the cause and ErrNoItem.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() []error {
	return []error{e.Err, ErrNoItem}
}

// StepName returns the name of the failed step.
func (e *StepError) StepName() string {
	return e.Step
}
