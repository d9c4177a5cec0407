package httpserver

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Hub fans terminal events out to every connected UI page over one websocket
// endpoint. Text frames carry JSON events, binary frames carry 48kHz linear16
// audio for playback, so the hub doubles as the speech queue's sink.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan wsFrame
}

type wsFrame struct {
	messageType int
	data        []byte
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// Handle upgrades the request and serves the connection until the page leaves.
func (h *Hub) Handle(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	cl := &wsClient{conn: conn, send: make(chan wsFrame, 64)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	go h.writePump(cl)
	h.readPump(cl)
	return nil
}

// readPump discards inbound frames; the socket is one-way. It exists to detect
// the peer closing.
func (h *Hub) readPump(cl *wsClient) {
	defer h.drop(cl)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *wsClient) {
	for f := range cl.send {
		if err := cl.conn.WriteMessage(f.messageType, f.data); err != nil {
			return
		}
	}
	_ = cl.conn.Close()
}

func (h *Hub) drop(cl *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
	_ = cl.conn.Close()
}

func (h *Hub) broadcast(f wsFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- f:
		default:
			// slow page; frames are transient, never queue behind it
		}
	}
}

// Broadcast sends one JSON event to every page. v carries its own type tag.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("hub: marshal event: %v", err)
		return
	}
	h.broadcast(wsFrame{messageType: websocket.TextMessage, data: data})
}

// WritePCM streams synthesized audio to the pages for playback.
func (h *Hub) WritePCM(b []byte) {
	if len(b) == 0 {
		return
	}
	h.broadcast(wsFrame{messageType: websocket.BinaryMessage, data: b})
}

// ClientCount reports the number of connected pages.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
