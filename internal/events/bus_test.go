package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	ch1, cancel1 := bus.Subscribe()
	ch2, cancel2 := bus.Subscribe()
	defer cancel1()
	defer cancel2()

	bus.Publish(MoodBoardAdd{ImageURL: "https://cdn.example/sofa.jpg"})
	bus.Publish(RoomTypeSet{RoomType: "bedroom"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		e := <-ch
		add, ok := e.(MoodBoardAdd)
		require.True(t, ok)
		assert.Equal(t, "https://cdn.example/sofa.jpg", add.ImageURL)

		e = <-ch
		set, ok := e.(RoomTypeSet)
		require.True(t, ok)
		assert.Equal(t, "bedroom", set.RoomType)
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	cancel()

	// Channel is closed; publishing afterwards must not panic.
	bus.Publish(ConsultationComplete{})
	_, open := <-ch
	assert.False(t, open)
}

func TestBus_SlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe()
	defer cancel()

	// Nobody drains; publishing past the buffer must return promptly.
	for i := 0; i < subscriberBuffer*2; i++ {
		bus.Publish(PreferenceUpdate{Key: "style", Value: "japandi"})
	}
}

func TestKind_CoversUnion(t *testing.T) {
	tests := []struct {
		event Event
		kind  string
	}{
		{MoodBoardAdd{}, "mood_board_add"},
		{PreferenceUpdate{}, "preference_update"},
		{RoomTypeSet{}, "room_type_set"},
		{MiroBoardCreated{}, "miro_board_created"},
		{ConsultationComplete{}, "consultation_complete"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, Kind(tt.event))
	}
}
