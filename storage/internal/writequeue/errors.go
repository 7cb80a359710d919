package writequeue

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Submit once Stop has been called.
	ErrClosed = errors.New("write queue closed")

	// ErrQueueFull is matched by every *QueueFullError.
	ErrQueueFull = errors.New("write queue full")
)

// QueueFullError reports a shard that stayed full for the whole enqueue
// timeout.
type QueueFullError struct {
	Shard    int
	Length   int
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("write queue shard %d full (%d/%d)", e.Shard, e.Length, e.Capacity)
}

// Is lets errors.Is(err, ErrQueueFull) match.
func (e *QueueFullError) Is(target error) bool { return target == ErrQueueFull }
