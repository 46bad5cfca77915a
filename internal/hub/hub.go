package hub

import (
	"sync"

	"github.com/livepoll/livepoll/internal/entity"
)

// subscriberBuffer bounds the per-connection event queue. A connection that
// cannot keep up loses newest events; delivery is best-effort.
const subscriberBuffer = 32

const (
	EventPollCreated    = "pollCreated"
	EventResultsUpdated = "resultsUpdated"
)

// Event is one outbound frame. PollCreated events carry Poll; ResultsUpdated
// events carry PollID and Tally.
type Event struct {
	Type   string              `json:"type"`
	PollID string              `json:"poll_id,omitempty"`
	Poll   *entity.Poll        `json:"poll,omitempty"`
	Tally  []entity.TallyEntry `json:"tally,omitempty"`
}

// Subscriber is one live connection's receiving end. Events for the same poll
// arrive in publish order because a single queue feeds the connection writer.
type Subscriber struct {
	mu     sync.Mutex
	closed bool
	queue  chan Event
}

// Events is drained by the connection's writer loop. The channel closes when
// the subscriber is dropped from the hub.
func (s *Subscriber) Events() <-chan Event {
	return s.queue
}

func (s *Subscriber) enqueue(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.queue <- event:
	default:
		// Slow consumer: drop rather than block the publisher.
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
}

// Hub is the fan-out table: every registered connection, plus per-poll
// interest sets. It holds no poll state and never persists anything.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscriber]struct{}
	byPoll map[string]map[*Subscriber]struct{}
}

func New() *Hub {
	return &Hub{
		subs:   make(map[*Subscriber]struct{}),
		byPoll: make(map[string]map[*Subscriber]struct{}),
	}
}

// Register adds a connection to the hub. The caller must Drop it on teardown.
func (h *Hub) Register() *Subscriber {
	sub := &Subscriber{queue: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Subscribe adds sub to the interest set of pollID. Idempotent.
func (h *Hub) Subscribe(sub *Subscriber, pollID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}

	set, ok := h.byPoll[pollID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.byPoll[pollID] = set
	}
	set[sub] = struct{}{}
}

// Unsubscribe removes sub from the interest set of pollID. Idempotent.
func (h *Hub) Unsubscribe(sub *Subscriber, pollID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromPoll(sub, pollID)
}

// Drop removes the connection from the hub and every interest set it belongs
// to, then closes its queue. Safe to call more than once and safe against
// concurrent publishes.
func (h *Hub) Drop(sub *Subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	for pollID := range h.byPoll {
		h.removeFromPoll(sub, pollID)
	}
	h.mu.Unlock()

	sub.close()
}

// PublishPollCreated goes to every registered connection: nobody is
// subscribed to a poll that did not exist a moment ago.
func (h *Hub) PublishPollCreated(poll entity.Poll) {
	event := Event{Type: EventPollCreated, Poll: &poll}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		sub.enqueue(event)
	}
}

// PublishResultsUpdated goes only to connections subscribed to pollID.
func (h *Hub) PublishResultsUpdated(pollID string, tally []entity.TallyEntry) {
	event := Event{Type: EventResultsUpdated, PollID: pollID, Tally: tally}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.byPoll[pollID] {
		sub.enqueue(event)
	}
}

// Connections reports how many connections are registered.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// PollSubscribers reports the size of pollID's interest set.
func (h *Hub) PollSubscribers(pollID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byPoll[pollID])
}

func (h *Hub) removeFromPoll(sub *Subscriber, pollID string) {
	set, ok := h.byPoll[pollID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.byPoll, pollID)
	}
}
