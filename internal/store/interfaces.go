package store

import (
	"context"

	"github.com/smarttrash/smarttrash/internal/model"
)

// ItemReader provides read access to items.
type ItemReader interface {
	Get(ctx context.Context, id int) (model.Item, error)
	Search(ctx context.Context, keyword string) ([]model.Item, error)
	Items(ctx context.Context) ([]model.Item, error)
	Recent(ctx context.Context, n int) ([]model.Item, error)
	Snapshot(ctx context.Context) (model.Snapshot, error)
}

// ItemAppender records new items.
type ItemAppender interface {
	Append(ctx context.Context, objects []string, a model.Analysis, imageRef string) (model.Item, error)
}
