package embeddings

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without touching the provider while the
// breaker is cooling down.
var ErrCircuitOpen = errors.New("embedding circuit breaker is open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker is a closed/open/half-open state machine guarding the embedding
// provider. Counter updates are serialized behind one mutex; the guarded
// call itself runs outside the lock.
type Breaker struct {
	mu sync.Mutex

	state     breakerState
	failures  int // consecutive failures while closed
	successes int // consecutive successes while half-open
	openedAt  time.Time

	failureThreshold int
	successThreshold int
	cooldown         time.Duration

	now func() time.Time // injectable for tests
}

func NewBreaker() *Breaker {
	return &Breaker{
		failureThreshold: 5,
		successThreshold: 3,
		cooldown:         60 * time.Second,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. While open it fails fast until
// the cooldown elapses, then moves to half-open and lets a trial through.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen {
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = stateHalfOpen
		b.successes = 0
	}
	return nil
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		b.failures = 0
	case stateHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.reset()
		}
	case stateOpen:
		// A straggler call that started before the breaker opened
		// succeeded; the dependency recovered.
		b.reset()
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.trip()
		}
	case stateHalfOpen:
		b.trip()
	case stateOpen:
		// already open; nothing to count
	}
}

func (b *Breaker) reset() {
	b.state = stateClosed
	b.failures = 0
	b.successes = 0
}

func (b *Breaker) trip() {
	b.state = stateOpen
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
}

// Do runs fn under breaker accounting.
func (b *Breaker) Do(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}
