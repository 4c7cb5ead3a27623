// Package realtime pushes live-reload events to browsers in dev mode.
//
// A Hub fans events out to every connected WebSocket session. Each session
// has its own buffered channel; when it is full the event is dropped for
// that session only, so a stalled tab never blocks a config reload.
package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/kallitechnia/pkg/log"
)

const (
	TypeInit   = "init"
	TypeReload = "reload"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Event is the JSON envelope written to clients.
type Event struct {
	Type   string    `json:"type"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Reload builds a reload event stamped with the current time.
func Reload(reason string) Event {
	return Event{Type: TypeReload, Reason: reason, At: time.Now().UTC()}
}

type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan Event
	nextID    uint64
	bufSize   int
	upgrader  websocket.Upgrader
	logger    *log.Logger
}

// NewHub returns a hub with a per-listener buffer of bufSize, 8 when <= 0.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 8
	}
	return &Hub{
		listeners: make(map[uint64]chan Event),
		bufSize:   bufSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: log.ForService("realtime"),
	}
}

// Register adds a listener. Callers must Unregister the returned id.
func (h *Hub) Register() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes and closes a listener. Unknown ids are ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers ev to every listener, best effort.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// ServeHTTP upgrades the request and streams events until the client goes
// away. The first message is always an init event.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, events := h.Register()
	defer h.Unregister(id)
	h.logger.Debugf("Client %d connected from %s", id, r.RemoteAddr)

	done := make(chan struct{})
	go h.readLoop(conn, done)

	if err := h.write(conn, Event{Type: TypeInit, At: time.Now().UTC()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(conn, ev); err != nil {
				h.logger.Debugf("Client %d write failed: %v", id, err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			h.logger.Debugf("Client %d disconnected", id)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, ev Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *Hub) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Script is the snippet the layout injects in dev mode. It reloads the
// page on every reload event and reconnects after the server restarts.
const Script = `<script>
(function () {
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws/reload");
    ws.onmessage = function (msg) {
      try {
        if (JSON.parse(msg.data).type === "reload") location.reload();
      } catch (e) {}
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
</script>`
