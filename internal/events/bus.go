// Package events carries consultation-side updates as a typed event union
// over a subscribe/publish channel, replacing ad hoc callback props.
package events

import "sync"

// Event is one member of the closed consultation event union.
type Event interface {
	eventKind() string
}

// MoodBoardAdd reports an image added to the mood board.
type MoodBoardAdd struct {
	ImageURL string
}

// PreferenceUpdate reports a single preference key change.
type PreferenceUpdate struct {
	Key   string
	Value string
}

// RoomTypeSet reports the detected or chosen room type.
type RoomTypeSet struct {
	RoomType string
}

// MiroBoardCreated reports the collaboration board URL.
type MiroBoardCreated struct {
	URL string
}

// ConsultationComplete reports the end of the consultation stage.
type ConsultationComplete struct{}

func (MoodBoardAdd) eventKind() string         { return "mood_board_add" }
func (PreferenceUpdate) eventKind() string     { return "preference_update" }
func (RoomTypeSet) eventKind() string          { return "room_type_set" }
func (MiroBoardCreated) eventKind() string     { return "miro_board_created" }
func (ConsultationComplete) eventKind() string { return "consultation_complete" }

// Kind returns the event's wire name.
func Kind(e Event) string { return e.eventKind() }

const subscriberBuffer = 16

// Bus fans events out to subscribers. A subscriber that falls more than
// subscriberBuffer events behind misses the overflow rather than blocking
// the publisher.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a receiver. The returned cancel function removes the
// subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every current subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
