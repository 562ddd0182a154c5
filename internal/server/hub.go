package server

import (
	"encoding/json"
	"sync"
)

// client is a single dashboard connection.
type client interface {
	Send(message []byte) bool
	Close()
}

// hub maintains active dashboard connections keyed by project and pushes
// refresh notifications to them.
type hub struct {
	mu               sync.RWMutex
	projectToClients map[string]map[client]struct{}
}

func newHub() *hub {
	return &hub{projectToClients: make(map[string]map[client]struct{})}
}

func (h *hub) register(projectID string, c client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.projectToClients[projectID]; !ok {
		h.projectToClients[projectID] = make(map[client]struct{})
	}
	h.projectToClients[projectID][c] = struct{}{}
}

func (h *hub) unregister(projectID string, c client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.projectToClients[projectID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.projectToClients, projectID)
		}
	}
}

func (h *hub) broadcast(projectID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.projectToClients[projectID] {
		// A failed write is not fatal here; the reader loop cleans the
		// client up when the connection is actually gone.
		c.Send(message)
	}
}

// NotifyRefresh pushes a refresh hint to every dashboard watching a project.
// Wire this to the engine's Notify callback.
func (s *Server) NotifyRefresh(projectID string) {
	msg, _ := json.Marshal(map[string]string{"type": "refresh", "project": projectID})
	s.hub.broadcast(projectID, msg)
}
