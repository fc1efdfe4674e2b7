// Package realtime is the websocket relay: sockets join rooms (a personal
// room per user and one room per chat) and frames are fanned out to rooms
// through a Broker. Delivery is best-effort and at-most-once.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dmitrijs2005/chatterbox/internal/logging"
	"github.com/google/uuid"
)

// Frame is what travels over a socket in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope is a frame addressed to a room. Except names a socket that must
// not receive it, usually the one that sent it.
type Envelope struct {
	Room   string          `json:"room"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
	Except string          `json:"except,omitempty"`
}

// peer is one connected socket. Writes are serialized by mu.
type peer struct {
	id   string
	mu   sync.Mutex
	send func(Frame) error
}

func newPeer(send func(Frame) error) *peer {
	return &peer{id: uuid.NewString(), send: send}
}

func (p *peer) writeFrame(f Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.send(f)
}

// Hub tracks room membership of the sockets connected to this instance.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*peer]struct{}
	joined map[*peer]map[string]struct{}

	broker Broker
	log    logging.Logger
}

func NewHub(broker Broker, log logging.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*peer]struct{}),
		joined: make(map[*peer]map[string]struct{}),
		broker: broker,
		log:    log.With("module", "relay"),
	}
}

// Start subscribes the hub to its broker.
func (h *Hub) Start(ctx context.Context) error {
	return h.broker.Subscribe(ctx, h.deliver)
}

func (h *Hub) join(p *peer, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*peer]struct{})
		h.rooms[room] = members
	}
	members[p] = struct{}{}

	rooms, ok := h.joined[p]
	if !ok {
		rooms = make(map[string]struct{})
		h.joined[p] = rooms
	}
	rooms[room] = struct{}{}
}

func (h *Hub) leaveAll(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range h.joined[p] {
		members := h.rooms[room]
		delete(members, p)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.joined, p)
}

// RoomSize reports how many local sockets are in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) publish(ctx context.Context, env Envelope) {
	if err := h.broker.Publish(ctx, env); err != nil {
		h.log.Warn(ctx, "relay publish failed", "room", env.Room, "event", env.Event, "error", err)
	}
}

// deliver writes env to every local socket in its room.
func (h *Hub) deliver(env Envelope) {
	h.mu.RLock()
	targets := make([]*peer, 0, len(h.rooms[env.Room]))
	for p := range h.rooms[env.Room] {
		if p.id != env.Except {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	frame := Frame{Event: env.Event, Data: env.Data}
	for _, p := range targets {
		if err := p.writeFrame(frame); err != nil {
			h.log.Debug(context.Background(), "relay write failed", "peer", p.id, "error", err)
		}
	}
}
