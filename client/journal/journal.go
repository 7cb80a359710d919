// Package journal records the exchanges made by a connector client
// transport: an in-memory history, a zerolog dump logger and Prometheus
// counters.
package journal

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Journal receives one call per exchange.
type Journal interface {
	AddSuccess(req *http.Request, resp *http.Response)
	AddFailure(req *http.Request, err error)
}

// Entry is a single recorded exchange. Exactly one of Response and Err is
// set.
type Entry struct {
	ID       string
	At       time.Time
	Request  *http.Request
	Response *http.Response
	Err      error
}

// Failed reports whether the exchange ended in an error.
func (e Entry) Failed() bool { return e.Err != nil }

// History keeps the most recent exchanges in memory.
type History struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
}

// NewHistory returns a History holding at most limit entries; a limit of
// zero or less keeps everything.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// AddSuccess records a completed exchange.
func (h *History) AddSuccess(req *http.Request, resp *http.Response) {
	h.add(Entry{Request: req, Response: resp})
}

// AddFailure records a failed exchange.
func (h *History) AddFailure(req *http.Request, err error) {
	h.add(Entry{Request: req, Err: err})
}

func (h *History) add(e Entry) {
	e.ID = uuid.NewString()
	e.At = time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = append([]Entry(nil), h.entries[len(h.entries)-h.limit:]...)
	}
}

// Entries returns a copy of the recorded exchanges, oldest first.
func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Entry(nil), h.entries...)
}

// Len returns the number of recorded exchanges.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Last returns the most recent exchange.
func (h *History) Last() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return Entry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// LastRequest returns the request of the most recent exchange, or nil.
func (h *History) LastRequest() *http.Request {
	e, _ := h.Last()
	return e.Request
}

// LastResponse returns the response of the most recent exchange, or nil
// when it failed.
func (h *History) LastResponse() *http.Response {
	e, _ := h.Last()
	return e.Response
}

// LastError returns the error of the most recent exchange, or nil.
func (h *History) LastError() error {
	e, _ := h.Last()
	return e.Err
}

// Clear drops every recorded exchange.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// multi fans each exchange out to several journals.
type multi []Journal

// Multi returns a Journal forwarding to every non-nil journal in order.
func Multi(journals ...Journal) Journal {
	out := make(multi, 0, len(journals))
	for _, j := range journals {
		if j != nil {
			out = append(out, j)
		}
	}
	return out
}

func (m multi) AddSuccess(req *http.Request, resp *http.Response) {
	for _, j := range m {
		j.AddSuccess(req, resp)
	}
}

func (m multi) AddFailure(req *http.Request, err error) {
	for _, j := range m {
		j.AddFailure(req, err)
	}
}
