// File: internal/infra/session/queue.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sentinelzap/internal/domain"
	"sentinelzap/internal/infra/metrics"
)

// InitFunc performs one session initialization attempt.
type InitFunc func(ctx context.Context, sessionID string) error

type item struct {
	sessionID string
	done      chan error
}

// Queue serializes session initializations globally. Concurrent browser
// startups compete for the same system resources, so exactly one
// initialization runs at a time, with a pacing delay between items.
//
// A session is marked in-progress at ENQUEUE time: a second Enqueue for the
// same session fails fast with ErrAlreadyInitializing until the first attempt
// finishes, whether it is still waiting in line or already running.
type Queue struct {
	init       InitFunc
	timeout    time.Duration
	delay      time.Duration
	logger     zerolog.Logger
	sleep      func(time.Duration) // test seam
	items      chan item
	mu         sync.Mutex
	inProgress map[string]struct{}
}

func NewQueue(init InitFunc, timeout, delay time.Duration, logger *zerolog.Logger) *Queue {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if delay < 0 {
		delay = 0
	}
	return &Queue{
		init:       init,
		timeout:    timeout,
		delay:      delay,
		logger:     logger.With().Str("component", "session_queue").Logger(),
		sleep:      time.Sleep,
		items:      make(chan item, 64),
		inProgress: make(map[string]struct{}),
	}
}

// Enqueue adds a session to the line and returns a channel that yields the
// initialization outcome exactly once.
func (q *Queue) Enqueue(sessionID string) (<-chan error, error) {
	q.mu.Lock()
	if _, busy := q.inProgress[sessionID]; busy {
		q.mu.Unlock()
		return nil, domain.ErrAlreadyInitializing
	}
	q.inProgress[sessionID] = struct{}{}
	q.mu.Unlock()

	it := item{sessionID: sessionID, done: make(chan error, 1)}
	select {
	case q.items <- it:
		metrics.SessionQueueDepth.Inc()
		return it.done, nil
	default:
		q.mu.Lock()
		delete(q.inProgress, sessionID)
		q.mu.Unlock()
		return nil, domain.ErrQueueFull
	}
}

// IsInitializing reports whether the session is queued or running.
func (q *Queue) IsInitializing(sessionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, busy := q.inProgress[sessionID]
	return busy
}

// Len returns the number of items waiting (not counting the running one).
func (q *Queue) Len() int { return len(q.items) }

// Run processes the queue until ctx is cancelled. Call it from exactly one
// goroutine.
func (q *Queue) Run(ctx context.Context) {
	q.logger.Info().Dur("timeout", q.timeout).Dur("delay", q.delay).Msg("session queue started")
	for {
		select {
		case <-ctx.Done():
			q.drain(ctx.Err())
			return
		case it := <-q.items:
			metrics.SessionQueueDepth.Dec()
			q.process(ctx, it)
			if q.delay > 0 {
				q.sleep(q.delay)
			}
		}
	}
}

func (q *Queue) process(ctx context.Context, it item) {
	start := time.Now()
	initCtx, cancel := context.WithTimeout(ctx, q.timeout)
	err := q.init(initCtx, it.sessionID)
	cancel()

	q.mu.Lock()
	delete(q.inProgress, it.sessionID)
	q.mu.Unlock()

	metrics.SessionInitSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SessionInitTotal.WithLabelValues("error").Inc()
		q.logger.Warn().Err(err).Str("session_id", it.sessionID).
			Dur("took", time.Since(start)).Msg("session init failed")
	} else {
		metrics.SessionInitTotal.WithLabelValues("ok").Inc()
		q.logger.Info().Str("session_id", it.sessionID).
			Dur("took", time.Since(start)).Msg("session init done")
	}
	it.done <- err
}

// drain fails every queued item on shutdown so no caller blocks forever.
func (q *Queue) drain(err error) {
	for {
		select {
		case it := <-q.items:
			metrics.SessionQueueDepth.Dec()
			q.mu.Lock()
			delete(q.inProgress, it.sessionID)
			q.mu.Unlock()
			it.done <- err
		default:
			return
		}
	}
}
