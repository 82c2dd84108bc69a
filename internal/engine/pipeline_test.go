package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttrash/smarttrash/internal/model"
	"github.com/smarttrash/smarttrash/internal/store"
)

type fakeCamera struct {
	frame []byte
	err   error
	calls int
}

func (c *fakeCamera) Capture(context.Context) ([]byte, error) {
	c.calls++
	return c.frame, c.err
}

type memorySink struct {
	saved [][]byte
	err   error
}

func (s *memorySink) Save(_ context.Context, image []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, image)
	return fmt.Sprintf("mem://%d.jpg", len(s.saved)), nil
}

type fakeLabeler struct {
	labels []string
	err    error
}

func (l *fakeLabeler) Detect(context.Context, []byte) ([]string, error) {
	return l.labels, l.err
}

type fakeModel struct {
	response string
	err      error
	prompts  []string
}

func (m *fakeModel) Complete(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

type recordingNotifier struct {
	items []model.Item
}

func (n *recordingNotifier) Publish(item model.Item) {
	n.items = append(n.items, item)
}

const bottleAnalysis = `{"waste_category":"recyclable","production_emissions":"0.08 kg","disposal_emissions":"0.02 kg","recommended_disposal":"Recycle","decomposition_time":"450 years"}`

type fixture struct {
	camera   *fakeCamera
	sink     *memorySink
	labeler  *fakeLabeler
	model    *fakeModel
	store    *store.FileStore
	notifier *recordingNotifier
	stages   []Stage
	pipeline *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Load(filepath.Join(t.TempDir(), "items_database.json"))
	require.NoError(t, err)

	f := &fixture{
		camera:   &fakeCamera{frame: []byte("jpeg")},
		sink:     &memorySink{},
		labeler:  &fakeLabeler{labels: []string{"bottle", "plastic"}},
		model:    &fakeModel{response: bottleAnalysis},
		store:    s,
		notifier: &recordingNotifier{},
	}
	f.pipeline = NewPipeline(
		DefaultSteps(f.camera, f.sink, f.labeler, f.model, f.store),
		WithObserver(func(st Stage) { f.stages = append(f.stages, st) }),
		WithNotifier(f.notifier),
	)
	return f
}

func TestPipeline_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.pipeline.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, item)

	assert.Equal(t, 1, item.ID)
	assert.Equal(t, []string{"bottle", "plastic"}, item.DetectedObjects)
	assert.Equal(t, "recyclable", item.WasteCategory)
	assert.Equal(t, "mem://1.jpg", item.ImageReference)

	snap, err := f.store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TotalItems)
	assert.InDelta(t, 0.08, snap.TotalCarbonFootprint, 1e-9)
	assert.Equal(t, 1, snap.Categories["recyclable"])
	assert.Equal(t, 1, snap.ItemTypes["bottle"])

	require.Len(t, f.model.prompts, 1)
	assert.Contains(t, f.model.prompts[0], "bottle, plastic")
	for _, field := range model.AnalysisFields {
		assert.Contains(t, f.model.prompts[0], field)
	}

	assert.Equal(t, []Stage{
		StageIdle, StageCapturing, StageDetecting, StageAnalyzing,
		StageNormalizing, StagePersisting, StageDone, StageIdle,
	}, f.stages)
	assert.Equal(t, StageIdle, f.pipeline.Stage())

	require.Len(t, f.notifier.items, 1)
	assert.Equal(t, 1, f.notifier.items[0].ID)
}

func TestPipeline_AbortOnCaptureFailure(t *testing.T) {
	f := newFixture(t)
	f.camera.err = errors.New("device busy")

	item, err := f.pipeline.Run(context.Background())
	assert.Nil(t, item)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoItem)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "capturing", se.StepName())

	assert.Equal(t, []Stage{StageIdle, StageCapturing, StageIdle}, f.stages)
	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.sink.saved)
	assert.Empty(t, f.model.prompts)
	assert.Empty(t, f.notifier.items)
}

func TestPipeline_AbortOnImageSaveFailure(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("disk full")

	_, err := f.pipeline.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoItem)
	assert.Equal(t, 0, f.store.Len())
}

func TestPipeline_AbortOnEmptyDetection(t *testing.T) {
	f := newFixture(t)
	f.labeler.labels = nil

	item, err := f.pipeline.Run(context.Background())
	assert.Nil(t, item)
	assert.ErrorIs(t, err, ErrNoItem)
	assert.ErrorIs(t, err, ErrNoObjects)

	assert.Equal(t, []Stage{StageIdle, StageCapturing, StageDetecting, StageIdle}, f.stages)
	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.model.prompts)

	snap, err := f.store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.NewSnapshot(), snap)
}

func TestPipeline_AbortOnLabelerError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("quota exceeded")
	f.labeler.err = boom

	_, err := f.pipeline.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoItem)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, f.store.Len())
}

func TestPipeline_MalformedModelOutputStillRecords(t *testing.T) {
	f := newFixture(t)
	f.model.response = "I think this is a plastic bottle."

	item, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Unknown, item.WasteCategory)
	assert.Equal(t, "I think this is a plastic bottle.", item.RawAnalysis)

	snap, _ := f.store.Snapshot(context.Background())
	assert.Equal(t, 1, snap.Categories["general"])
}

func TestPipeline_ModelErrorRecordsUnknowns(t *testing.T) {
	f := newFixture(t)
	f.model.err = errors.New("connection refused")

	item, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, model.UnknownAnalysis(), item.Analysis)
	assert.Equal(t, 1, f.store.Len())
}

// blockingModel answers only when ctx is done.
type blockingModel struct{}

func (blockingModel) Complete(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestPipeline_CancelledDuringAnalysisStillRecords(t *testing.T) {
	s, err := store.Load(filepath.Join(t.TempDir(), "items_database.json"))
	require.NoError(t, err)
	sink := &memorySink{}
	p := NewPipeline(DefaultSteps(
		&fakeCamera{frame: []byte("jpeg")},
		sink,
		&fakeLabeler{labels: []string{"bottle"}},
		blockingModel{},
		s,
	))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	item, err := p.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, []string{"bottle"}, item.DetectedObjects)
	assert.Equal(t, "mem://1.jpg", item.ImageReference)
	assert.Equal(t, model.UnknownAnalysis(), item.Analysis)
	assert.Len(t, sink.saved, 1)
	assert.Equal(t, 1, s.Len())
}

func TestPipeline_PersistFailureReturnsItemAndWarning(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	s, err := store.Load(filepath.Join(dataDir, "items_database.json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dataDir, []byte("x"), 0o644))

	notifier := &recordingNotifier{}
	p := NewPipeline(DefaultSteps(
		&fakeCamera{frame: []byte("jpeg")},
		&memorySink{},
		&fakeLabeler{labels: []string{"can"}},
		&fakeModel{response: bottleAnalysis},
		s,
	), WithNotifier(notifier))

	item, err := p.Run(context.Background())
	require.NotNil(t, item)
	assert.ErrorIs(t, err, store.ErrPersist)
	assert.NotErrorIs(t, err, ErrNoItem)
	assert.Equal(t, 1, item.ID)
	assert.Equal(t, 1, s.Len())
	assert.Len(t, notifier.items, 1)
}

func TestPipeline_SequentialIDs(t *testing.T) {
	f := newFixture(t)
	for want := 1; want <= 3; want++ {
		item, err := f.pipeline.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, item.ID)
	}
}

// failingStep always returns an error.
type failingStep struct {
	stage Stage
}

func (s *failingStep) Stage() Stage { return s.stage }
func (s *failingStep) Run(context.Context, *StepContext) error {
	return errors.New("intentional failure")
}

func TestPipeline_StopsOnFirstError(t *testing.T) {
	cam := &fakeCamera{frame: []byte("jpeg")}
	sink := &memorySink{}
	mc := &fakeModel{response: bottleAnalysis}

	p := NewPipeline([]Step{
		&CaptureStep{Camera: cam, Sink: sink},
		&failingStep{stage: StageDetecting},
		&AnalyzeStep{Model: mc},
	})

	_, err := p.Run(context.Background())
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "detecting", se.StepName())
	assert.Len(t, sink.saved, 1)
	assert.Empty(t, mc.prompts)
}

func TestPipeline_WithoutPersistStep(t *testing.T) {
	p := NewPipeline([]Step{&NormalizeStep{}})
	item, err := p.Run(context.Background())
	assert.Nil(t, item)
	assert.ErrorIs(t, err, ErrNoItem)
}

func TestPipeline_RunsAreSerialized(t *testing.T) {
	f := newFixture(t)
	f.pipeline.observer = nil
	f.pipeline.notifier = nil

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pipeline.Run(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	items, err := f.store.Items(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 8)
	for i, it := range items {
		assert.Equal(t, i+1, it.ID)
	}
	assert.Len(t, f.model.prompts, 8)
}

func TestStepError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	se := &StepError{Step: "capturing", Err: inner}

	assert.Equal(t, "capturing: root cause", se.Error())
	assert.ErrorIs(t, se, inner)
	assert.ErrorIs(t, se, ErrNoItem)
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "persisting", StagePersisting.String())
	assert.Equal(t, "unknown", Stage(99).String())
	b, err := StageDone.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "done", string(b))
}
