// Package annotation drives the per-item lifecycle of AI-generated
// annotations: Idle → Requesting → Streaming → Complete | Failed.
//
// Each item holds at most one live request. A request is identified by a
// session token; chunks that carry any other token belong to a superseded or
// cancelled request and are dropped.
package annotation

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Status is the lifecycle state of a request.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRequesting Status = "requesting"
	StatusStreaming  Status = "streaming"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further chunks are accepted.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Request is one annotation request for one item.
type Request struct {
	ItemID    string
	PersonaID string
	Session   string
	Status    Status
	Text      string
	Err       error
}

// Tracker holds the live request of every item. It is owned by the engine
// loop and is not safe for concurrent use.
type Tracker struct {
	requests map[string]*Request
	entropy  io.Reader
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		requests: make(map[string]*Request),
		entropy:  &lockedEntropy{r: ulid.Monotonic(rand.Reader, 0)},
	}
}

// Begin starts a new request for itemID, superseding any request in flight.
// Returns the new request and the session it replaced (empty if none was live).
func (t *Tracker) Begin(itemID, personaID string) (Request, string) {
	var superseded string
	if prev, ok := t.requests[itemID]; ok && !prev.Status.Terminal() {
		superseded = prev.Session
	}

	req := &Request{
		ItemID:    itemID,
		PersonaID: personaID,
		Session:   ulid.MustNew(ulid.Timestamp(time.Now()), t.entropy).String(),
		Status:    StatusRequesting,
	}
	t.requests[itemID] = req
	return *req, superseded
}

// Chunk appends text to the live request. Returns the accumulated text and
// false when the session is stale, the request is terminal, or the chunk is
// empty (empty chunks never change state).
func (t *Tracker) Chunk(itemID, session, text string) (string, bool) {
	req, ok := t.live(itemID, session)
	if !ok || text == "" {
		return "", false
	}
	req.Status = StatusStreaming
	req.Text += text
	return req.Text, true
}

// Complete marks the request finished after a clean end-of-stream.
func (t *Tracker) Complete(itemID, session string) bool {
	req, ok := t.live(itemID, session)
	if !ok {
		return false
	}
	req.Status = StatusComplete
	return true
}

// Fail marks the request failed, keeping whatever text already arrived.
func (t *Tracker) Fail(itemID, session string, err error) (string, bool) {
	req, ok := t.live(itemID, session)
	if !ok {
		return "", false
	}
	req.Status = StatusFailed
	req.Err = err
	return req.Text, true
}

// Cancel forgets the request for itemID.
// Returns the session that was live, if any, so its transport can be stopped.
func (t *Tracker) Cancel(itemID string) (string, bool) {
	req, ok := t.requests[itemID]
	if !ok {
		return "", false
	}
	delete(t.requests, itemID)
	if req.Status.Terminal() {
		return "", false
	}
	return req.Session, true
}

// Get returns a copy of the request for itemID.
func (t *Tracker) Get(itemID string) (Request, bool) {
	req, ok := t.requests[itemID]
	if !ok {
		return Request{}, false
	}
	return *req, true
}

// Live returns the number of requests still requesting or streaming.
func (t *Tracker) Live() int {
	n := 0
	for _, req := range t.requests {
		if !req.Status.Terminal() {
			n++
		}
	}
	return n
}

func (t *Tracker) live(itemID, session string) (*Request, bool) {
	req, ok := t.requests[itemID]
	if !ok || req.Session != session || req.Status.Terminal() {
		return nil, false
	}
	return req, true
}

// lockedEntropy serializes access to the monotonic ulid entropy source.
type lockedEntropy struct {
	mu sync.Mutex
	r  io.Reader
}

func (l *lockedEntropy) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Read(p)
}
