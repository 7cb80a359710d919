// Package errors classifies transport failures so the retry plugin can tell
// transient conditions from permanent ones.
package errors

import "fmt"

// Category determines how a failure is handled by the retry plugin.
type Category int

const (
	// Recoverable failures are retried with exponential backoff.
	// Examples: 503 Service Unavailable, connection resets, timeouts.
	Recoverable Category = iota

	// Irrecoverable failures are returned to the caller immediately.
	// Examples: 400 Bad Request, 401 Unauthorized, 404 Not Found.
	Irrecoverable

	// Canceled failures stem from the caller's context and are never retried.
	Canceled
)

// String returns a human-readable representation of the category.
func (c Category) String() string {
	switch c {
	case Recoverable:
		return "Recoverable"
	case Irrecoverable:
		return "Irrecoverable"
	case Canceled:
		return "Canceled"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Classification is the verdict for a single failed attempt.
type Classification struct {
	Category   Category
	StatusCode int // 0 for network-level failures
}

// Retryable reports whether another attempt may be made.
func (c Classification) Retryable() bool { return c.Category == Recoverable }
