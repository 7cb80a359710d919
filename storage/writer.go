package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashutosh-srijan/connector-code-sample/client"
	"github.com/ashutosh-srijan/connector-code-sample/storage/internal/writequeue"
)

// WriterConfig tunes an AsyncWriter. Zero values select defaults.
type WriterConfig = writequeue.Config

// LoadWriterConfig reads CONNECTOR_WRITEQUEUE_* environment variables.
func LoadWriterConfig() (WriterConfig, error) { return writequeue.LoadConfig() }

// Writes the AsyncWriter rejects at submission.
var (
	ErrWriterClosed = writequeue.ErrClosed
	ErrWriterFull   = writequeue.ErrQueueFull
)

// EntityWriter is the write half of a storage client.
type EntityWriter interface {
	Save(ctx context.Context, e Entity) (Entity, error)
	Delete(ctx context.Context, id string) error
}

// AsyncWriter sends saves and deletes in the background. Writes for one
// entity ID are applied in submission order; writes for different IDs may
// run in parallel. Failed writes are retried with exponential backoff
// unless the remote API rejected them outright (4xx other than 408 and
// 429, or ErrNotFound).
type AsyncWriter struct {
	w     EntityWriter
	queue *writequeue.Queue
}

// NewAsyncWriter starts an AsyncWriter in front of w.
func NewAsyncWriter(w EntityWriter, cfg WriterConfig) *AsyncWriter {
	if cfg.Permanent == nil {
		cfg.Permanent = permanentWriteError
	}
	return &AsyncWriter{w: w, queue: writequeue.New(cfg)}
}

// Save enqueues a save of e, keyed by the entity's value under idField.
// New entities without an ID are queued under the empty key. ctx bounds
// both the submission and the write itself.
func (a *AsyncWriter) Save(ctx context.Context, idField string, e Entity) error {
	key := fmt.Sprint(e[idField])
	if e[idField] == nil {
		key = ""
	}
	snapshot := MergeDeep(Configuration(e), nil)
	return a.queue.Submit(ctx, key, writequeue.JobFunc(func(ctx context.Context) error {
		_, err := a.w.Save(ctx, Entity(snapshot))
		return err
	}))
}

// Delete enqueues a delete of id.
func (a *AsyncWriter) Delete(ctx context.Context, id string) error {
	return a.queue.Submit(ctx, id, writequeue.JobFunc(func(ctx context.Context) error {
		return a.w.Delete(ctx, id)
	}))
}

// Flush waits until every write queued for id before the call has run.
func (a *AsyncWriter) Flush(ctx context.Context, id string) error {
	return a.queue.Barrier(ctx, id)
}

// Close applies every queued write and stops the writer.
func (a *AsyncWriter) Close() error {
	return a.queue.Close()
}

func permanentWriteError(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	return client.StatusCode(err) > 0 && !client.IsRetryable(err)
}
