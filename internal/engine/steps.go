package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/smarttrash/smarttrash/internal/model"
	"github.com/smarttrash/smarttrash/internal/store"
)

// ErrNoObjects is returned by the detect step when the image yields no labels.
var ErrNoObjects = errors.New("no objects detected")

// Step is one stage of a pipeline run.
type Step interface {
	Stage() Stage
	Run(ctx context.Context, sc *StepContext) error
}

// StepContext carries the intermediate results of one run between steps.
type StepContext struct {
	Image    []byte
	ImageRef string
	Labels   []string
	Raw      string
	Analysis model.Analysis
	Item     *model.Item
	// Warning is a non-fatal error returned alongside the stored item.
	Warning error
}

// DefaultSteps wires the standard capture, detect, analyze, normalize and
// persist sequence.
func DefaultSteps(cam Camera, sink ImageSink, labeler Labeler, mc ModelClient, items ItemAppender) []Step {
	return []Step{
		&CaptureStep{Camera: cam, Sink: sink},
		&DetectStep{Labeler: labeler},
		&AnalyzeStep{Model: mc},
		&NormalizeStep{},
		&PersistStep{Items: items},
	}
}

// ---------------------------------------------------------------------------
// Step 1: Capture
// ---------------------------------------------------------------------------

// CaptureStep grabs a frame and stores it.
type CaptureStep struct {
	Camera Camera
	Sink   ImageSink
}

func (s *CaptureStep) Stage() Stage { return StageCapturing }

func (s *CaptureStep) Run(ctx context.Context, sc *StepContext) error {
	img, err := s.Camera.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if len(img) == 0 {
		return errors.New("capture: empty frame")
	}
	ref, err := s.Sink.Save(ctx, img)
	if err != nil {
		return fmt.Errorf("save image: %w", err)
	}
	sc.Image = img
	sc.ImageRef = ref
	return nil
}

// ---------------------------------------------------------------------------
// Step 2: Detect
// ---------------------------------------------------------------------------

// DetectStep asks the vision service for object labels.
type DetectStep struct {
	Labeler Labeler
}

func (s *DetectStep) Stage() Stage { return StageDetecting }

func (s *DetectStep) Run(ctx context.Context, sc *StepContext) error {
	labels, err := s.Labeler.Detect(ctx, sc.Image)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	if len(labels) == 0 {
		return ErrNoObjects
	}
	sc.Labels = labels
	log.Debug().Strs("labels", labels).Msg("objects detected")
	return nil
}

// ---------------------------------------------------------------------------
// Step 3: Analyze
// ---------------------------------------------------------------------------

// AnalyzeStep asks the language model to assess the detected objects. A
// failed or cancelled call is not fatal: the empty answer normalizes to an
// all-unknown analysis, since the observation cannot be repeated.
type AnalyzeStep struct {
	Model ModelClient
}

func (s *AnalyzeStep) Stage() Stage { return StageAnalyzing }

func (s *AnalyzeStep) Run(ctx context.Context, sc *StepContext) error {
	raw, err := s.Model.Complete(ctx, BuildAnalysisPrompt(sc.Labels))
	if err != nil {
		log.Warn().Err(err).Strs("labels", sc.Labels).Msg("analysis failed, recording unknown values")
		raw = ""
	}
	sc.Raw = raw
	return nil
}

// ---------------------------------------------------------------------------
// Step 4: Normalize
// ---------------------------------------------------------------------------

// NormalizeStep fills every analysis field. It never fails.
type NormalizeStep struct{}

func (s *NormalizeStep) Stage() Stage { return StageNormalizing }

func (s *NormalizeStep) Run(_ context.Context, sc *StepContext) error {
	sc.Analysis = NormalizeAnalysis(sc.Raw)
	if sc.Analysis.RawAnalysis != "" {
		log.Debug().Str("raw", sc.Analysis.RawAnalysis).Msg("analysis was not JSON, kept raw text")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Step 5: Persist
// ---------------------------------------------------------------------------

// PersistStep appends the item to the store. A write failure after the item
// was recorded in memory is reported as a warning, not an abort. Once the
// image is saved and labelled the record is written even if ctx is done.
type PersistStep struct {
	Items ItemAppender
}

func (s *PersistStep) Stage() Stage { return StagePersisting }

func (s *PersistStep) Run(ctx context.Context, sc *StepContext) error {
	item, err := s.Items.Append(context.WithoutCancel(ctx), sc.Labels, sc.Analysis, sc.ImageRef)
	if err != nil && !errors.Is(err, store.ErrPersist) {
		return fmt.Errorf("persist: %w", err)
	}
	sc.Item = &item
	sc.Warning = err
	return nil
}
