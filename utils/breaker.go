package utils

import (
	"errors"
	"sync"
	"time"
)

var ErrBreakerOpen = errors.New("upstream temporarily unavailable")

// Breaker is a windowed failure counter guarding calls to an upstream
// API. After maxFailures consecutive failures it rejects calls for the
// cooldown window, then lets traffic through again. State is held on the
// instance, never at package level, so deployments with several
// processes each get their own breaker and tests can inject a clock.
type Breaker struct {
	mu          sync.Mutex
	maxFailures int
	cooldown    time.Duration
	failures    int
	openedAt    time.Time
	now         func() time.Time
}

func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Do runs fn unless the breaker is open. A nil return from fn resets the
// failure count; an error counts toward opening the breaker.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.failures >= b.maxFailures {
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		// cooldown elapsed, half-open: allow one attempt through
		b.failures = b.maxFailures - 1
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.failures >= b.maxFailures {
			b.openedAt = b.now()
		}
		return err
	}
	b.failures = 0
	return nil
}
