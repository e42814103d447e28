package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"daochain/core/types"
)

const (
	wsWriteTimeout       = 10 * time.Second
	subscriberBufferSize = 256
)

// EventMessage is one event pushed to stream subscribers.
type EventMessage struct {
	Height uint64       `json:"height"`
	Event  *types.Event `json:"event"`
}

type subscriber struct {
	module string
	ch     chan EventMessage
}

// EventHub fans committed runtime events out to websocket subscribers. It
// implements runtime.EventSink. A subscriber that falls a full buffer
// behind is dropped rather than stalling block production.
type EventHub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscriber
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[uint64]*subscriber)}
}

// Publish delivers evts to every matching subscriber without blocking.
func (h *EventHub) Publish(height uint64, evts []*types.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		if !sub.deliver(height, evts) {
			close(sub.ch)
			delete(h.subs, id)
		}
	}
}

// Subscribe registers a subscriber for events of module, or every module
// when module is empty. The returned cancel func must be called once done.
func (h *EventHub) Subscribe(module string) (<-chan EventMessage, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	sub := &subscriber{module: module, ch: make(chan EventMessage, subscriberBufferSize)}
	h.subs[id] = sub
	return sub.ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if current, ok := h.subs[id]; ok && current == sub {
			close(sub.ch)
			delete(h.subs, id)
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// deliver reports false when the subscriber's buffer is full.
func (s *subscriber) deliver(height uint64, evts []*types.Event) bool {
	for _, evt := range evts {
		if evt == nil || !s.matches(evt) {
			continue
		}
		select {
		case s.ch <- EventMessage{Height: height, Event: evt.Clone()}:
		default:
			return false
		}
	}
	return true
}

func (s *subscriber) matches(evt *types.Event) bool {
	if s.module == "" {
		return true
	}
	return strings.HasPrefix(evt.Type, s.module+".")
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	module := strings.TrimSpace(r.URL.Query().Get("module"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, module); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, module string) error {
	updates, cancel := s.hub.Subscribe(module)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-updates:
			if !ok {
				return conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
			}
			if err := writeEvent(ctx, conn, msg); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, msg EventMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
