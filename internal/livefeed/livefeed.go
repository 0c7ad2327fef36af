// Package livefeed is a lightweight in-process pub-sub hub for per-meeting
// change events. Services publish after every successful mutation; the events
// API streams them to connected clients. Events carry IDs and small payloads
// only, subscribers re-query the store when they need full records.
package livefeed

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/meetscribe/meetscribe/server/internal/model"
)

// EventKind represents the type of meeting change event.
type EventKind string

const (
	EventSegmentAppended    EventKind = "segment_appended"
	EventParticipantJoined  EventKind = "participant_joined"
	EventParticipantRemoved EventKind = "participant_removed"
	EventMuteChanged        EventKind = "mute_changed"
	EventPhaseChanged       EventKind = "phase_changed"
	EventLanguageChanged    EventKind = "language_changed"
	EventSummaryUpdated     EventKind = "summary_updated"
	EventMeetingArchived    EventKind = "meeting_archived"
)

// Event is one meeting change notification.
type Event struct {
	Kind      EventKind                `json:"kind"`
	MeetingID string                   `json:"meetingId"`
	UserID    string                   `json:"userId,omitempty"`
	Phase     model.Phase              `json:"phase,omitempty"`
	Muted     bool                     `json:"muted,omitempty"`
	Language  string                   `json:"language,omitempty"`
	Segment   *model.TranscriptSegment `json:"segment,omitempty"`
}

// Subscription is one consumer's view of a meeting's event stream.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	cancel func()
}

// Close detaches the subscription from the hub.
func (s *Subscription) Close() { s.cancel() }

// Hub fans events out to per-meeting subscribers. Publish never blocks: a
// subscriber that cannot keep up has events dropped and can recover by
// re-reading the transcript.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]map[*Subscription]struct{}
	buffer  int
	log     zerolog.Logger
	dropped uint64
}

// NewHub creates a hub whose subscriptions buffer the given number of events.
func NewHub(buffer int, log zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a consumer for one meeting's events.
func (h *Hub) Subscribe(meetingID string) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch}
	sub.cancel = func() { h.unsubscribe(meetingID, sub) }

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[meetingID] == nil {
		h.subs[meetingID] = make(map[*Subscription]struct{})
	}
	h.subs[meetingID][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(meetingID string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[meetingID]
	if set == nil {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(h.subs, meetingID)
	}
}

// Publish delivers evt to every subscriber of its meeting without blocking.
func (h *Hub) Publish(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[evt.MeetingID] {
		select {
		case sub.ch <- evt:
		default:
			h.dropped++
			h.log.Warn().
				Str("meetingId", evt.MeetingID).
				Str("kind", string(evt.Kind)).
				Uint64("totalDropped", h.dropped).
				Msg("livefeed subscriber buffer full, event dropped")
		}
	}
}

// SubscriberCount reports how many consumers are attached to a meeting.
func (h *Hub) SubscriberCount(meetingID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[meetingID])
}
