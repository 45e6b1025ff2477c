package main

import (
	"context"
	"log/slog"
	"sync"

	"go-sweep-elevator/pkg/elevator"
)

// hub fans the car's single event channel out to every WebSocket session.
type hub struct {
	mu      sync.Mutex
	subs    map[chan elevator.Event]struct{}
	dropped uint64
}

func newHub() *hub {
	return &hub{subs: make(map[chan elevator.Event]struct{})}
}

// subscribe registers a listener; the returned func removes it.
func (h *hub) subscribe() (<-chan elevator.Event, func()) {
	ch := make(chan elevator.Event, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}

// run forwards events until ctx is done.
func (h *hub) run(ctx context.Context, events <-chan elevator.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			h.broadcast(ev)
		}
	}
}

func (h *hub) broadcast(ev elevator.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// A slow client must not stall the others.
			h.dropped++
			if h.dropped%100 == 1 {
				slog.Warn("Session event buffer full", "dropped", h.dropped, "type", ev.Type)
			}
		}
	}
}
