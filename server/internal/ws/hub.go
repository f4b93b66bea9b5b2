package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/delayboard/delayboard/server/internal/api"
	"github.com/delayboard/delayboard/server/internal/store"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10 // must stay below pongWait

	// queueDepth is how many snapshots may wait for a slow dashboard before
	// it is dropped.
	queueDepth = 16

	// Dashboards only send control frames.
	maxInboundFrame = 512
)

// EventSnapshot is the Message.Event of every frame the hub sends.
const EventSnapshot = "snapshot"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin checks are left to the reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Message is one frame of the stream.
type Message struct {
	Event string               `json:"event"`
	Data  api.SnapshotResponse `json:"data"`
}

// Hub streams the dataset snapshot to connected dashboards: once on connect,
// then every interval, and again as soon as Notify reports a reload.
type Hub struct {
	store    *store.Store
	interval time.Duration
	kick     chan struct{}

	mu    sync.RWMutex
	peers map[*peer]struct{}
}

// peer is one dashboard connection.
type peer struct {
	conn   *websocket.Conn
	queue  chan []byte
	remote string
}

// New returns a Hub serving snapshots of st every interval.
func New(st *store.Store, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		interval: interval,
		kick:     make(chan struct{}, 1),
		peers:    make(map[*peer]struct{}),
	}
}

// Run pushes snapshots until ctx is cancelled and then disconnects every
// dashboard. A Notify restarts the interval.
func (h *Hub) Run(ctx context.Context) {
	tick := time.NewTicker(h.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			h.disconnectAll()
			return
		case <-h.kick:
			h.publish()
			tick.Reset(h.interval)
		case <-tick.C:
			h.publish()
		}
	}
}

// Notify asks Run for an immediate snapshot. It does not block; notifications
// arriving before Run picks up the previous one collapse into it.
func (h *Hub) Notify() {
	select {
	case h.kick <- struct{}{}:
	default:
	}
}

// ServeHTTP upgrades r and streams snapshots until the dashboard goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade has replied to the client
	}

	p := &peer{
		conn:   conn,
		queue:  make(chan []byte, queueDepth),
		remote: r.RemoteAddr,
	}
	// The first snapshot is queued before the peer becomes visible to publish.
	if frame, err := h.encode(); err == nil {
		p.queue <- frame
	}
	h.attach(p)
	defer h.detach(p)

	go p.writeLoop()
	p.readLoop()
}

// Count returns the number of connected dashboards.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *Hub) attach(p *peer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()
	slog.Debug("ws: dashboard connected", "remote", p.remote, "connected", n)
}

// detach removes p and closes its queue, which ends its writeLoop. It is safe
// to call more than once.
func (h *Hub) detach(p *peer) {
	h.mu.Lock()
	_, ok := h.peers[p]
	if ok {
		delete(h.peers, p)
		close(p.queue)
	}
	h.mu.Unlock()
	if ok {
		slog.Debug("ws: dashboard disconnected", "remote", p.remote)
	}
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		delete(h.peers, p)
		close(p.queue)
	}
}

// publish queues the current snapshot for every peer. Queues are written
// under the read lock, so detach cannot close one mid-send.
func (h *Hub) publish() {
	if h.Count() == 0 {
		return
	}
	frame, err := h.encode()
	if err != nil {
		slog.Error("ws: encode snapshot", "err", err)
		return
	}

	var lagging []*peer
	h.mu.RLock()
	for p := range h.peers {
		select {
		case p.queue <- frame:
		default:
			lagging = append(lagging, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range lagging {
		slog.Warn("ws: dashboard not keeping up, disconnecting", "remote", p.remote)
		h.detach(p)
	}
}

func (h *Hub) encode() ([]byte, error) {
	return json.Marshal(Message{Event: EventSnapshot, Data: api.BuildSnapshot(h.store)})
}

// writeLoop sends queued snapshots and keepalive pings. A closed queue sends
// a close frame and ends the connection.
func (p *peer) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-p.queue:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound frames, keeping the read deadline fresh on every
// pong. It returns once the connection fails or closes.
func (p *peer) readLoop() {
	defer p.conn.Close()
	p.conn.SetReadLimit(maxInboundFrame)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			return
		}
	}
}
