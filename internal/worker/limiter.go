package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter implements per-conversation rate limiting of classifier calls
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter. A non-positive rate disables
// limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait blocks until the conversation may call the classifier again
func (l *Limiter) Wait(ctx context.Context, conversationID string) error {
	return l.get(conversationID).Wait(ctx)
}

// get returns the rate limiter for a conversation
func (l *Limiter) get(conversationID string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[conversationID]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[conversationID]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[conversationID] = limiter

	return limiter
}

// Forget drops the limiter of a finished conversation
func (l *Limiter) Forget(conversationID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, conversationID)
}
