package console

import (
	"errors"
	"sync"

	"github.com/dkeye/CamView/internal/app/session"
	"github.com/dkeye/CamView/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

const subscriberBuffer = 16

// Subscriber receives snapshots of one camera. A slow subscriber loses
// snapshots instead of stalling the session.
type Subscriber struct {
	device domain.DeviceID
	send   chan session.Snapshot

	mu     sync.RWMutex
	closed bool
}

func (s *Subscriber) C() <-chan session.Snapshot { return s.send }

func (s *Subscriber) TrySend(snap session.Snapshot) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("subscriber closed")
	}
	select {
	case s.send <- snap:
	default:
		return ErrBackpressure
	}
	return nil
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// Hub fans snapshots out to the subscribers of each camera. OnSnapshot never
// blocks, so it is safe as a session observer.
type Hub struct {
	mu   sync.RWMutex
	subs map[domain.DeviceID]map[*Subscriber]struct{}
	// dropped counts snapshots lost to backpressure.
	dropped func(device domain.DeviceID)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[domain.DeviceID]map[*Subscriber]struct{})}
}

func (h *Hub) Subscribe(device domain.DeviceID) *Subscriber {
	s := &Subscriber{device: device, send: make(chan session.Snapshot, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[device] == nil {
		h.subs[device] = make(map[*Subscriber]struct{})
	}
	h.subs[device][s] = struct{}{}
	return s
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	if set := h.subs[s.device]; set != nil {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.device)
		}
	}
	h.mu.Unlock()
	s.close()
}

// CloseDevice ends every subscription of a removed camera.
func (h *Hub) CloseDevice(device domain.DeviceID) {
	h.mu.Lock()
	set := h.subs[device]
	delete(h.subs, device)
	h.mu.Unlock()
	for s := range set {
		s.close()
	}
}

func (h *Hub) OnSnapshot(snap session.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[snap.DeviceID] {
		if err := s.TrySend(snap); errors.Is(err, ErrBackpressure) && h.dropped != nil {
			h.dropped(snap.DeviceID)
		}
	}
}

func (h *Hub) Subscribers(device domain.DeviceID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[device])
}
