package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/modelibr/modelibr/common/logger"
	"github.com/modelibr/modelibr/common/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// UI clients connect cross-origin; events carry no secrets.
		return true
	},
}

// Server handles WebSocket subscriptions
type Server struct {
	hub *Hub
	log *logger.Logger
}

// NewServer creates a new Server instance
func NewServer(hub *Hub, log *logger.Logger) *Server {
	return &Server{
		hub: hub,
		log: log,
	}
}

// HandleWebSocket upgrades the connection and registers the client.
// URL: /ws?kinds=model-version,texture-set (omit to subscribe to all kinds)
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	kinds, err := parseKinds(r.URL.Query().Get("kinds"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade error", "error", err)
		return
	}

	client := NewClient(s.hub, conn, kinds, s.log)
	s.hub.register <- client

	s.log.Info("new websocket connection", "kinds", kinds, "remote", r.RemoteAddr)

	go client.writePump()
	go client.readPump()
}

// HandleStats reports hub occupancy
// GET /stats
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"connections": s.hub.ConnectionCount(),
		"kinds":       s.hub.KindCount(),
	})
}

// parseKinds validates the comma-separated kind list; empty means all kinds
func parseKinds(raw string) ([]string, error) {
	if raw == "" {
		return []string{
			string(models.TargetModelVersion),
			string(models.TargetTextureSet),
			string(models.TargetSound),
		}, nil
	}

	var kinds []string
	for _, part := range strings.Split(raw, ",") {
		kind, ok := models.ParseTargetKind(strings.TrimSpace(part))
		if !ok {
			return nil, &badKindError{raw: part}
		}
		kinds = append(kinds, string(kind))
	}
	return kinds, nil
}

type badKindError struct {
	raw string
}

func (e *badKindError) Error() string {
	return "invalid target kind: " + e.raw
}
