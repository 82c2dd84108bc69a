package engine

import (
	"context"

	"github.com/smarttrash/smarttrash/internal/model"
)

// ModelClient abstracts LLM calls. Implementations can wrap OpenAI, local models, etc.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Labeler returns the object labels found in an image, most confident first.
type Labeler interface {
	Detect(ctx context.Context, image []byte) ([]string, error)
}

// Camera acquires one frame as encoded image bytes.
type Camera interface {
	Capture(ctx context.Context) ([]byte, error)
}

// ImageSink stores a captured frame and returns a reference to it.
type ImageSink interface {
	Save(ctx context.Context, image []byte) (string, error)
}

// ItemAppender records a new item.
type ItemAppender interface {
	Append(ctx context.Context, objects []string, a model.Analysis, imageRef string) (model.Item, error)
}

// Notifier is told about every stored item.
type Notifier interface {
	Publish(item model.Item)
}
