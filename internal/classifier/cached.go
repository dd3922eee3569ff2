package classifier

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/patientsim/internal/cache"
	"github.com/ppiankov/patientsim/internal/nlu"
)

// Cached remembers predictions so repeated questions skip the service
type Cached struct {
	next  Classifier
	cache cache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

// NewCached wraps next with a prediction cache
func NewCached(next Classifier, c cache.Cache, ttl time.Duration, log *zap.Logger) *Cached {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cached{next: next, cache: c, ttl: ttl, log: log}
}

// Name returns the wrapped provider name
func (c *Cached) Name() string {
	return c.next.Name()
}

// Classify returns a cached prediction or asks the wrapped classifier.
// Failures are never cached.
func (c *Cached) Classify(ctx context.Context, query string) (*nlu.Prediction, error) {
	key := cache.CacheKey("classify:" + c.next.Name() + ":" + strings.ToLower(strings.TrimSpace(query)))

	if data, ok := c.cache.Get(key); ok {
		var p nlu.Prediction
		if err := json.Unmarshal(data, &p); err == nil {
			c.log.Debug("classifier cache hit", zap.String("query", query))
			p.Query = query
			return &p, nil
		}
		_ = c.cache.Delete(key)
	}

	p, err := c.next.Classify(ctx, query)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(p); err == nil {
		if err := c.cache.Set(key, data, c.ttl); err != nil {
			c.log.Warn("classifier cache write failed", zap.Error(err))
		}
	}
	return p, nil
}
