package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttrash/smarttrash/internal/store"
)

func newSQLiteCache(t *testing.T) *store.AnalysisCache {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c, err := store.NewAnalysisCache(db)
	require.NoError(t, err)
	return c
}

func TestCachedModelClient_CallsInnerOnce(t *testing.T) {
	inner := &fakeModel{response: bottleAnalysis}
	c := NewCachedModelClient(inner, newSQLiteCache(t))
	prompt := BuildAnalysisPrompt([]string{"bottle"})

	for i := 0; i < 3; i++ {
		got, err := c.Complete(context.Background(), prompt)
		require.NoError(t, err)
		assert.Equal(t, bottleAnalysis, got)
	}
	assert.Len(t, inner.prompts, 1)

	_, err := c.Complete(context.Background(), BuildAnalysisPrompt([]string{"can"}))
	require.NoError(t, err)
	assert.Len(t, inner.prompts, 2)
}

func TestCachedModelClient_SkipsUnparsableResponses(t *testing.T) {
	inner := &fakeModel{response: "not json"}
	cache := newSQLiteCache(t)
	c := NewCachedModelClient(inner, cache)

	for i := 0; i < 2; i++ {
		_, err := c.Complete(context.Background(), "p")
		require.NoError(t, err)
	}
	assert.Len(t, inner.prompts, 2)

	n, err := cache.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCachedModelClient_PropagatesInnerError(t *testing.T) {
	boom := errors.New("boom")
	c := NewCachedModelClient(&fakeModel{err: boom}, newSQLiteCache(t))

	_, err := c.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, boom)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk I/O error")
}

func (brokenCache) Set(context.Context, string, string) error {
	return errors.New("disk I/O error")
}

func TestCachedModelClient_CacheErrorsAreNotFatal(t *testing.T) {
	inner := &fakeModel{response: bottleAnalysis}
	c := NewCachedModelClient(inner, brokenCache{})

	got, err := c.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, bottleAnalysis, got)
}

func TestHashPrompt(t *testing.T) {
	assert.Len(t, hashPrompt("x"), 64)
	assert.Equal(t, hashPrompt("x"), hashPrompt("x"))
	assert.NotEqual(t, hashPrompt("x"), hashPrompt("y"))
}
