package events

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/codecollab/execd/internal/domain"
)

// Bridge forwards execution lifecycle events to room-scoped subscribers.
// The real-time layer subscribes per room and fans out to its clients;
// the bridge itself never blocks a publisher. Events for one execution are
// published in lifecycle order, so each subscriber channel observes the
// RUNNING status event before the terminal output event.
type Bridge struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan domain.Event
	nextID int
	buffer int
	logger *zerolog.Logger
}

func NewBridge(buffer int, logger *zerolog.Logger) *Bridge {
	return &Bridge{
		subs:   make(map[string]map[int]chan domain.Event),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe returns a channel of events for roomID and a cancel function.
// The channel is closed on cancel.
func (b *Bridge) Subscribe(roomID string) (<-chan domain.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan domain.Event, b.buffer)
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[int]chan domain.Event)
	}
	id := b.nextID
	b.nextID++
	b.subs[roomID][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[roomID][id]; ok {
			delete(b.subs[roomID], id)
			if len(b.subs[roomID]) == 0 {
				delete(b.subs, roomID)
			}
			close(sub)
		}
	}
	return ch, cancel
}

// PublishStatus emits a status event to every subscriber of roomID.
func (b *Bridge) PublishStatus(roomID string, ev domain.StatusEvent) {
	b.publish(roomID, domain.Event{RoomID: roomID, Status: &ev})
}

// PublishOutput emits the terminal output event to every subscriber of
// roomID.
func (b *Bridge) PublishOutput(roomID string, ev domain.OutputEvent) {
	b.publish(roomID, domain.Event{RoomID: roomID, Output: &ev})
}

func (b *Bridge) publish(roomID string, ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[roomID] {
		select {
		case ch <- ev:
		default:
			// A stalled subscriber must not hold up the worker pool.
			b.logger.Warn().Str("room_id", roomID).Msg("dropping event for slow subscriber")
		}
	}
}
