package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/rs/zerolog/log"
)

// ResponseCache stores model responses by prompt hash.
type ResponseCache interface {
	Get(ctx context.Context, hash string) (string, bool, error)
	Set(ctx context.Context, hash, response string) error
}

// CachedModelClient wraps a ModelClient with a response cache. The same label
// list always yields the same prompt, so repeated items skip the model call.
type CachedModelClient struct {
	inner ModelClient
	cache ResponseCache
}

// NewCachedModelClient creates a cached model client.
func NewCachedModelClient(inner ModelClient, cache ResponseCache) *CachedModelClient {
	return &CachedModelClient{inner: inner, cache: cache}
}

func hashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// Complete implements ModelClient with caching. Cache errors are logged and
// never fail the call.
func (c *CachedModelClient) Complete(ctx context.Context, prompt string) (string, error) {
	hash := hashPrompt(prompt)

	cached, ok, err := c.cache.Get(ctx, hash)
	if err != nil {
		log.Warn().Err(err).Msg("failed to check analysis cache")
	} else if ok {
		log.Debug().Str("hash", hash[:16]).Msg("analysis cache hit")
		return cached, nil
	}

	result, err := c.inner.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	// Only well-formed analyses are worth replaying.
	if a := NormalizeAnalysis(result); result != "" && a.RawAnalysis == "" {
		if err := c.cache.Set(ctx, hash, result); err != nil {
			log.Warn().Err(err).Msg("failed to cache analysis")
		} else {
			log.Debug().Str("hash", hash[:16]).Msg("cached analysis")
		}
	}
	return result, nil
}
