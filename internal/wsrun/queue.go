// Package wsrun implements C8's per-session serial run queue and active-run
// registry, independent of the WebSocket transport itself.
package wsrun

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

const maxQueueDepth = 8

// sessionRunRate caps how often a single session may start a new run,
// independent of queue depth: a client retrying a timed-out send should
// not be able to pile up tool-executing work faster than the agent loop
// can retire it.
const sessionRunRate = rate.Limit(2) // per second
const sessionRunBurst = 4

// Job is one unit of serialized work submitted to a session's queue.
type Job func(ctx context.Context)

// sessionQueue is a bounded FIFO of pending jobs for one session, drained
// by a single worker goroutine so runs against the same session never
// overlap.
type sessionQueue struct {
	jobs    chan Job
	limiter *rate.Limiter
	cancel  context.CancelFunc
	started bool
}

// Queues owns one sessionQueue per session ID.
type Queues struct {
	mu   sync.Mutex
	byID map[string]*sessionQueue
}

func NewQueues() *Queues {
	return &Queues{byID: make(map[string]*sessionQueue)}
}

// Submit enqueues job for sessionID. It returns an error if the queue is
// already at its depth cap; the caller is expected to surface this as a
// protocol error frame without dropping any in-flight run.
func (q *Queues) Submit(ctx context.Context, sessionID string, job Job) error {
	q.mu.Lock()
	sq, ok := q.byID[sessionID]
	if !ok {
		qctx, cancel := context.WithCancel(context.Background())
		sq = &sessionQueue{
			jobs:    make(chan Job, maxQueueDepth),
			limiter: rate.NewLimiter(sessionRunRate, sessionRunBurst),
			cancel:  cancel,
		}
		q.byID[sessionID] = sq
		go sq.run(qctx)
	}
	q.mu.Unlock()

	if !sq.limiter.Allow() {
		return fmt.Errorf("session is sending runs too quickly")
	}

	select {
	case sq.jobs <- job:
		return nil
	default:
		return fmt.Errorf("session queue is full")
	}
}

func (sq *sessionQueue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-sq.jobs:
			job(ctx)
		}
	}
}

// CloseAll stops every session worker; in-flight jobs are abandoned
// immediately (their individual run context is cancelled separately via
// the Registry before Close is called).
func (q *Queues) CloseAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, sq := range q.byID {
		sq.cancel()
		delete(q.byID, id)
	}
}
