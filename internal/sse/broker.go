// Package sse streams dashboard change events to browsers over
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TileCreated      = "tile.created"
	TileUpdated      = "tile.updated"
	TileDeleted      = "tile.deleted"
	TilesReordered   = "tiles.reordered"
	SettingsUpdated  = "settings.updated"
	DashboardUpdated = "dashboard.updated"
	Notification     = "notification"
)

// HeartbeatInterval is how often an idle stream receives a comment line so
// proxies keep it open.
var HeartbeatInterval = 25 * time.Second

// clientBuffer is how many frames a client may lag behind before frames
// for it are dropped.
const clientBuffer = 64

// Event is one message on the stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// message is an event queued for broadcast. Tile messages also nudge the
// dashboard.updated throttle.
type message struct {
	event Event
	tile  bool
}

// hub is the client set and throttle state. Only the broker goroutine
// touches it.
type hub struct {
	clients       map[chan []byte]struct{}
	lastDashboard time.Time
}

// Broker fans dashboard events out to connected browsers. Subscriptions
// and counts run as commands on the broker goroutine; events arrive on a
// single queue so every client sees them in publish order.
type Broker struct {
	throttle time.Duration
	seq      atomic.Uint64

	cmds chan func(*hub)
	msgs chan message

	quit   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// NewBroker creates a broker that emits dashboard.updated at most once per
// throttle after tile changes.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}
	b := &Broker{
		throttle: throttle,
		cmds:     make(chan func(*hub)),
		msgs:     make(chan message, 256),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.done)
	h := &hub{clients: make(map[chan []byte]struct{})}

	for {
		select {
		case <-b.quit:
			for ch := range h.clients {
				close(ch)
			}
			return
		case cmd := <-b.cmds:
			cmd(h)
		case m := <-b.msgs:
			b.send(h, m.event)
			if !m.tile {
				continue
			}
			if now := time.Now(); now.Sub(h.lastDashboard) >= b.throttle {
				h.lastDashboard = now
				b.send(h, Event{Type: DashboardUpdated, Data: map[string]string{}})
			}
		}
	}
}

// send frames e once and offers it to every client. A client whose buffer
// is full misses the frame.
func (b *Broker) send(h *hub, e Event) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return
	}
	frame := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", b.seq.Add(1), e.Type, payload))
	for ch := range h.clients {
		select {
		case ch <- frame:
		default:
		}
	}
}

// do runs cmd on the broker goroutine and reports whether it ran.
func (b *Broker) do(cmd func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	ran := make(chan struct{})
	select {
	case b.cmds <- func(h *hub) { cmd(h); close(ran) }:
		<-ran
		return true
	case <-b.done:
		return false
	}
}

func (b *Broker) enqueue(m message) {
	if b.closed.Load() {
		return
	}
	select {
	case b.msgs <- m:
	case <-b.done:
	}
}

// Close disconnects every client and stops the broker. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// Subscribe registers a client. The returned channel is closed by
// Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if !b.do(func(h *hub) { h.clients[ch] = struct{}{} }) {
		close(ch)
	}
	return ch
}

// Unsubscribe drops a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	n := 0
	b.do(func(h *hub) { n = len(h.clients) })
	return n
}

// Publish queues event for every connected client.
func (b *Broker) Publish(event Event) {
	b.enqueue(message{event: event})
}

// PublishTileEvent announces a created, updated or deleted tile, followed
// by a throttled dashboard.updated.
func (b *Broker) PublishTileEvent(kind, id string) {
	b.enqueue(message{
		event: Event{Type: "tile." + kind, Data: map[string]string{"id": id}},
		tile:  true,
	})
}

// ServeHTTP streams events to one browser (GET /api/events) until the
// request ends or the broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(HeartbeatInterval)
	defer ping.Stop()

	for {
		var frame []byte
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			frame = []byte(": ping\n\n")
		case msg, open := <-ch:
			if !open {
				return
			}
			frame = msg
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		flusher.Flush()
	}
}
