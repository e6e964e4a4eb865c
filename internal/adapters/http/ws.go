package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/lagscout/lagscout/internal/domain"
	"github.com/lagscout/lagscout/internal/utils"
)

var wsUpgrader = websocket.Upgrader{
	// TODO: tighten CORS/origin as needed. For now allow all to simplify local usage.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans completed check results out to connected websocket clients.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{})}
}

// Broadcast sends a check result to every connected client, dropping clients
// whose writes fail.
func (h *Hub) Broadcast(res domain.CheckResult) {
	payload, err := json.Marshal(res)
	if err != nil {
		utils.Logger.Error("marshal check result failed", "instance", res.Instance, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			utils.Logger.Info("websocket write failed, dropping client", "err", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		conn.Close()
		delete(h.conns, conn)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// wsStreamResults upgrades to WebSocket and pushes each completed check run
// to the client until it disconnects.
func (s *Server) wsStreamResults(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Logger.Error("websocket upgrade failed", "err", err)
		return
	}

	s.hub.add(conn)
	utils.Logger.Info("websocket client connected", "remote", conn.RemoteAddr().String())

	// reads are discarded; the read loop only detects disconnects
	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				utils.Logger.Info("websocket client disconnected", "err", err)
				return
			}
		}
	}()
}
