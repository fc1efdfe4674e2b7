package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/chatterbox/internal/logging"
	"golang.org/x/net/websocket"
)

// Socket event names.
const (
	EventSetup           = "setup"
	EventConnected       = "connected"
	EventJoinChat        = "join_chat"
	EventTyping          = "typing"
	EventStopTyping      = "stop_typing"
	EventNewMessage      = "new_message"
	EventMessageReceived = "message_received"
)

const maxDecodeErrors = 5

// Observer is notified about socket lifecycle and received frames.
type Observer interface {
	SocketOpened()
	SocketClosed()
	RelayEvent(event string)
}

type nopObserver struct{}

func (nopObserver) SocketOpened()     {}
func (nopObserver) SocketClosed()     {}
func (nopObserver) RelayEvent(string) {}

// Relay serves the websocket endpoint on top of a Hub.
type Relay struct {
	hub      *Hub
	origin   string
	observer Observer
	log      logging.Logger
}

// NewRelay returns a relay accepting sockets from origin; "*" or "" accept
// any origin. observer may be nil.
func NewRelay(hub *Hub, origin string, observer Observer, log logging.Logger) *Relay {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Relay{hub: hub, origin: origin, observer: observer, log: log.With("module", "relay")}
}

func (r *Relay) Handler() http.Handler {
	return websocket.Server{Handshake: r.handshake, Handler: r.serve}
}

func (r *Relay) handshake(_ *websocket.Config, req *http.Request) error {
	if r.origin == "" || r.origin == "*" {
		return nil
	}
	if got := req.Header.Get("Origin"); got != r.origin {
		return fmt.Errorf("origin %q not allowed", got)
	}
	return nil
}

func (r *Relay) serve(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	ctx := conn.Request().Context()
	p := newPeer(func(f Frame) error { return websocket.JSON.Send(conn, f) })
	r.observer.SocketOpened()
	defer func() {
		r.hub.leaveAll(p)
		r.observer.SocketClosed()
	}()

	decodeErrors := 0
	for {
		var frame Frame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr) {
				return
			}
			decodeErrors++
			if decodeErrors >= maxDecodeErrors {
				r.log.Debug(ctx, "too many malformed frames", "peer", p.id)
				return
			}
			continue
		}
		decodeErrors = 0

		r.observer.RelayEvent(frame.Event)
		r.dispatch(ctx, p, frame)
	}
}

func (r *Relay) dispatch(ctx context.Context, p *peer, frame Frame) {
	switch frame.Event {
	case EventSetup:
		id := refID(frame.Data)
		if id == "" {
			r.log.Debug(ctx, "setup without user id", "peer", p.id)
			return
		}
		r.hub.join(p, id)
		_ = p.writeFrame(Frame{Event: EventConnected})

	case EventJoinChat:
		if room := refID(frame.Data); room != "" {
			r.hub.join(p, room)
		}

	case EventTyping, EventStopTyping:
		room := refID(frame.Data)
		if room == "" {
			return
		}
		r.hub.publish(ctx, Envelope{Room: room, Event: frame.Event, Data: frame.Data, Except: p.id})

	case EventNewMessage:
		r.relayMessage(ctx, p, frame.Data)

	default:
		r.log.Debug(ctx, "unknown relay event", "event", frame.Event)
	}
}

type messagePayload struct {
	Sender json.RawMessage `json:"sender"`
	Chat   *struct {
		Users []json.RawMessage `json:"users"`
	} `json:"chat"`
}

// relayMessage forwards a message payload verbatim to the personal room of
// every chat member except its sender.
func (r *Relay) relayMessage(ctx context.Context, p *peer, data json.RawMessage) {
	var msg messagePayload
	if err := json.Unmarshal(data, &msg); err != nil {
		r.log.Debug(ctx, "dropping malformed message", "error", err)
		return
	}
	if msg.Chat == nil || len(msg.Chat.Users) == 0 {
		r.log.Info(ctx, "chat.users not defined, dropping message")
		return
	}

	sender := refID(msg.Sender)
	for _, u := range msg.Chat.Users {
		id := refID(u)
		if id == "" || id == sender {
			continue
		}
		r.hub.publish(ctx, Envelope{Room: id, Event: EventMessageReceived, Data: data, Except: p.id})
	}
}

// refID extracts an identifier from a bare JSON string or from an object
// carrying "id" or "_id".
func refID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var obj struct {
		ID       string `json:"id"`
		LegacyID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	if obj.ID != "" {
		return strings.TrimSpace(obj.ID)
	}
	return strings.TrimSpace(obj.LegacyID)
}
