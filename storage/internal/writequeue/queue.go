// Package writequeue runs storage writes on sharded worker goroutines. Jobs
// sharing a key (an entity ID) run one at a time in submission order;
// jobs with different keys may run in parallel.
//
// Callers must not Submit concurrently for the same key; FIFO order relies
// on that external serialisation.
package writequeue

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

type queuedJob struct {
	ctx context.Context
	key string
	job Job
}

// Queue executes Jobs on one worker per shard.
type Queue struct {
	cfg    Config
	queues []chan queuedJob

	// mu orders Submit's send against Stop closing done: every accepted
	// job is in a shard channel before the workers start draining.
	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	wg sync.WaitGroup
}

// New starts a Queue with cfg.
func New(cfg Config) *Queue {
	cfg = cfg.withDefaults()
	q := &Queue{
		cfg:    cfg,
		queues: make([]chan queuedJob, cfg.Shards),
		done:   make(chan struct{}),
	}
	for i := range q.queues {
		ch := make(chan queuedJob, cfg.QueueSize)
		q.queues[i] = ch
		q.wg.Add(1)
		go q.runWorker(i, ch)
	}
	return q
}

// Submit enqueues job on the shard for key. It fails with ErrClosed after
// Stop, with a *QueueFullError when the shard stays full for
// EnqueueTimeout, or with ctx.Err() when ctx ends first.
func (q *Queue) Submit(ctx context.Context, key string, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	shard := q.shardFor(key)
	ch := q.queues[shard]

	timer := time.NewTimer(q.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case ch <- queuedJob{ctx: ctx, key: key, job: job}:
		submissionsTotal.WithLabelValues(labelFor(shard)).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		queueFullTotal.WithLabelValues(labelFor(shard)).Inc()
		return &QueueFullError{Shard: shard, Length: len(ch), Capacity: cap(ch)}
	}
}

// Barrier waits until every job submitted for key before the call has
// finished.
func (q *Queue) Barrier(ctx context.Context, key string) error {
	done := make(chan struct{})
	if err := q.Submit(ctx, key, JobFunc(func(context.Context) error {
		close(done)
		return nil
	})); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Stop drains every shard and waits for the workers to exit. It waits for
// in-flight Submits, so every job Submit accepted runs. It is idempotent.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	log.Debug().Int("shards", q.cfg.Shards).Msg("write queue stopping")
	q.wg.Wait()
	log.Debug().Msg("write queue stopped")
}

// Close stops the queue.
func (q *Queue) Close() error {
	q.Stop()
	return nil
}

func (q *Queue) runWorker(idx int, ch <-chan queuedJob) {
	defer q.wg.Done()
	label := labelFor(idx)

	for {
		select {
		case qj := <-ch:
			if qj.job != nil {
				q.process(label, qj)
			}
			queueDepth.WithLabelValues(label).Set(float64(len(ch)))

		case <-q.done:
			drained := 0
			for {
				select {
				case qj := <-ch:
					if qj.job != nil {
						if err := q.runOnce(label, qj); err != nil {
							q.handleError(label, qj.key, err)
						}
						drained++
					}
				default:
					if drained > 0 {
						log.Debug().Int("shard", idx).Int("drained", drained).Msg("write queue shard drained")
					}
					queueDepth.WithLabelValues(label).Set(0)
					return
				}
			}
		}
	}
}

// process runs qj until it succeeds, fails permanently or runs out of
// attempts.
func (q *Queue) process(label string, qj queuedJob) {
	if err := qj.ctx.Err(); err != nil {
		q.handleError(label, qj.key, err)
		return
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = q.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = q.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()

	for attempt := 1; ; attempt++ {
		err := q.runOnce(label, qj)
		if err == nil {
			return
		}
		if q.permanent(err) || attempt >= q.cfg.MaxAttempts {
			q.handleError(label, qj.key, err)
			return
		}

		select {
		case <-time.After(exp.NextBackOff()):
		case <-q.done:
			q.handleError(label, qj.key, err)
			return
		case <-qj.ctx.Done():
			q.handleError(label, qj.key, qj.ctx.Err())
			return
		}
	}
}

// runOnce runs a single attempt, turning a panic into an error so one bad
// job cannot stop its shard.
func (q *Queue) runOnce(label string, qj queuedJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("write job panic: %v", r)
		}
	}()
	start := time.Now()
	defer func() { runDuration.WithLabelValues(label).Observe(time.Since(start).Seconds()) }()
	return qj.job.Run(qj.ctx)
}

func (q *Queue) permanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return q.cfg.Permanent != nil && q.cfg.Permanent(err)
}

func (q *Queue) handleError(label, key string, err error) {
	failuresTotal.WithLabelValues(label).Inc()
	log.Warn().Err(err).Str("key", key).Msg("write failed")
	if q.cfg.ErrorHandler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("write queue error handler panicked")
		}
	}()
	q.cfg.ErrorHandler(key, err)
}

func (q *Queue) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(q.cfg.Shards))
}
