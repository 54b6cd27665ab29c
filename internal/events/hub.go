package events

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 2 * time.Second

// Hub tracks every connected feed client across both transports and
// replicates each event to all of them. Clients that stop draining
// their socket are dropped on the next write.
type Hub struct {
	mu  sync.Mutex
	tcp map[net.Conn]struct{}
	ws  map[*websocket.Conn]struct{}
}

type Stats struct {
	TCPClients int `json:"tcp_clients"`
	WSClients  int `json:"ws_clients"`
}

func NewHub() *Hub {
	return &Hub{
		tcp: make(map[net.Conn]struct{}),
		ws:  make(map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Add(conn net.Conn) {
	h.mu.Lock()
	h.tcp[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Remove(conn net.Conn) {
	h.mu.Lock()
	delete(h.tcp, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Hub) AddWS(conn *websocket.Conn) {
	h.mu.Lock()
	h.ws[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) RemoveWS(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.ws, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// BroadcastJSON marshals v once and writes it to every client. TCP
// frames are newline-delimited; WebSocket clients get one text message
// per event.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("[events] marshal: %v", err)
		return
	}
	line := append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.tcp {
		_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := c.Write(line); err != nil {
			log.Printf("[events] drop tcp client %s: %v", c.RemoteAddr(), err)
			_ = c.Close()
			delete(h.tcp, c)
		}
	}

	for c := range h.ws {
		_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Printf("[events] drop ws client: %v", err)
			_ = c.Close()
			delete(h.ws, c)
		}
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		TCPClients: len(h.tcp),
		WSClients:  len(h.ws),
	}
}

// Welcome greets a freshly accepted TCP client so tail tools can
// confirm they reached the feed before the first real event arrives.
func (h *Hub) Welcome(conn net.Conn) {
	s := h.Stats()
	msg := fmt.Sprintf("{\"type\":\"hello\",\"service\":\"comicshelf\",\"tcp_clients\":%d,\"ws_clients\":%d}\n",
		s.TCPClients, s.WSClients)
	_, _ = conn.Write([]byte(msg))
}
