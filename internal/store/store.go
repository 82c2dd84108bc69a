package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/smarttrash/smarttrash/internal/model"
)

var (
	// ErrCorrupt is returned by Load when the persisted document cannot be trusted.
	ErrCorrupt = errors.New("store: corrupt database")
	// ErrPersist is returned by Append when the item was recorded in memory but
	// the database file could not be rewritten.
	ErrPersist = errors.New("store: persist failed")
	// ErrNotFound is returned when no item has the requested ID.
	ErrNotFound = errors.New("store: item not found")
)

// Verify at compile time that FileStore implements all interfaces.
var (
	_ ItemReader   = (*FileStore)(nil)
	_ ItemAppender = (*FileStore)(nil)
)

// document is the on-disk layout.
type document struct {
	Items      []model.Item   `json:"items"`
	Statistics model.Snapshot `json:"statistics"`
}

// FileStore keeps every item and the running statistics in memory and rewrites
// a single JSON file after each append.
type FileStore struct {
	path string
	now  func() time.Time

	mu       sync.RWMutex
	items    []model.Item
	snapshot model.Snapshot
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithClock overrides the time source used to stamp new items.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) { s.now = now }
}

// Load reads the database at path. A missing file yields an empty store.
func Load(path string, opts ...Option) (*FileStore, error) {
	s := &FileStore{
		path:     path,
		now:      time.Now,
		snapshot: model.NewSnapshot(),
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", path).Msg("no database found, starting empty")
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorrupt, path, err)
	}

	doc, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	s.items = doc.Items
	s.snapshot = doc.Statistics

	log.Info().Str("path", path).Int("items", len(s.items)).Msg("database loaded")
	return s, nil
}

// decode validates the document shape before trusting any of it. Unknown
// fields are ignored; a missing or malformed items list or statistics object
// is rejected.
func decode(data []byte) (*document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	if raw == nil {
		return nil, errors.New("document is null")
	}

	itemsRaw, ok := raw["items"]
	if !ok || isNull(itemsRaw) {
		return nil, errors.New("missing items list")
	}
	statsRaw, ok := raw["statistics"]
	if !ok || isNull(statsRaw) {
		return nil, errors.New("missing statistics object")
	}

	var stored []storedItem
	if err := json.Unmarshal(itemsRaw, &stored); err != nil {
		return nil, fmt.Errorf("items: %w", err)
	}
	doc := document{Items: make([]model.Item, len(stored))}
	for i, si := range stored {
		it := si.Item
		it.Timestamp = time.Time(si.Timestamp)
		doc.Items[i] = it
	}
	if err := json.Unmarshal(statsRaw, &doc.Statistics); err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	doc.Statistics.Normalize()
	return &doc, nil
}

// storedItem reads an item whose timestamp may lack a zone offset.
type storedItem struct {
	model.Item
	Timestamp isoTime `json:"timestamp"`
}

// isoTime accepts RFC 3339 and ISO 8601 without an offset. The latter is
// read as local time.
type isoTime time.Time

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *isoTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*t = isoTime(ts)
		return nil
	}
	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			*t = isoTime(ts)
			return nil
		}
	}
	return fmt.Errorf("timestamp %q is not ISO 8601", s)
}

func isNull(m json.RawMessage) bool {
	return len(bytes.TrimSpace(m)) == 0 || bytes.Equal(bytes.TrimSpace(m), []byte("null"))
}

// Path returns the database file path.
func (s *FileStore) Path() string {
	return s.path
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// Append records a new item, folds it into the running statistics and
// rewrites the database file. If the rewrite fails the item is still returned
// and kept in memory, and the error wraps ErrPersist.
func (s *FileStore) Append(_ context.Context, objects []string, a model.Analysis, imageRef string) (model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := model.NewItem(len(s.items)+1, s.now(), imageRef, objects, a)
	s.items = append(s.items, item)
	s.snapshot.Add(item)

	if err := s.save(); err != nil {
		log.Warn().Err(err).Int("id", item.ID).Msg("item recorded but database not saved")
		return item.Clone(), fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return item.Clone(), nil
}

// save rewrites the database atomically: write a temp file in the same
// directory, sync it and rename it over the old file. Callers hold s.mu.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(document{Items: s.items, Statistics: s.snapshot}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// Get returns the item with the given ID.
func (s *FileStore) Get(_ context.Context, id int) (model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// IDs are assigned sequentially and never reused, so the ID is the index+1.
	if id >= 1 && id <= len(s.items) && s.items[id-1].ID == id {
		return s.items[id-1].Clone(), nil
	}
	for _, it := range s.items {
		if it.ID == id {
			return it.Clone(), nil
		}
	}
	return model.Item{}, ErrNotFound
}

// Search returns, in insertion order, the items whose detected objects (or
// unparsed analysis text) contain keyword, ignoring case.
func (s *FileStore) Search(_ context.Context, keyword string) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []model.Item{}
	for _, it := range s.items {
		if it.Matches(keyword) {
			results = append(results, it.Clone())
		}
	}
	return results, nil
}

// Items returns a copy of every stored item in insertion order.
func (s *FileStore) Items(_ context.Context) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Item, len(s.items))
	for i, it := range s.items {
		out[i] = it.Clone()
	}
	return out, nil
}

// Recent returns up to n items, newest first.
func (s *FileStore) Recent(_ context.Context, n int) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.items) {
		n = len(s.items)
	}
	out := make([]model.Item, 0, n)
	for i := len(s.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.items[i].Clone())
	}
	return out, nil
}

// Snapshot returns a copy of the running statistics.
func (s *FileStore) Snapshot(_ context.Context) (model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone(), nil
}

// Len returns the number of stored items.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
