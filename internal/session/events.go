package session

import (
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// FrameEvent announces the people recognized in one frame.
type FrameEvent struct {
	Time      time.Time    `json:"time"`
	SessionID string       `json:"session_id,omitempty"`
	Names     []string     `json:"names"`
	Labels    []LabeledBox `json:"labels"`
}

// String renders the notification line, e.g. "[09:00:00] Recognized: Alice, Bob".
func (e FrameEvent) String() string {
	return "[" + e.Time.Format(constants.TimeLayout) + "] Recognized: " + strings.Join(e.Names, ", ")
}

// broadcaster fans events out to subscribers. Slow subscribers lose events
// instead of stalling the frame loop.
type broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]chan FrameEvent
}

func (b *broadcaster) subscribe() (<-chan FrameEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[int]chan FrameEvent)
	}
	id := b.next
	b.next++
	ch := make(chan FrameEvent, constants.EventChannelBuffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

func (b *broadcaster) publish(ev FrameEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
