package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/elijahnyp/light_agent/agent"
	"github.com/elijahnyp/light_agent/state"
	. "github.com/elijahnyp/light_agent/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Data interface{} `json:"data"`
	Type string      `json:"type"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn *websocket.Conn
	send chan WebSocketMessage
	hub  *WSHub
}

// WSHub maintains the set of active clients and broadcasts messages
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan WebSocketMessage
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
	count      atomic.Int32
}

// NewHub creates a new WebSocket hub
func NewHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WebSocketMessage, 16),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled, then drops every client.
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.count.Store(0)
			return

		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int32(len(h.clients)))
			Logger.Info().Msg("Client connected to WebSocket")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.count.Store(int32(len(h.clients)))
				Logger.Info().Msg("Client disconnected from WebSocket")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
					h.count.Store(int32(len(h.clients)))
				}
			}
		}
	}
}

func (h *WSHub) Clients() int {
	return int(h.count.Load())
}

// BroadcastUpdate sends an update to all connected clients
func (h *WSHub) BroadcastUpdate(messageType string, data interface{}) {
	select {
	case h.broadcast <- WebSocketMessage{Type: messageType, Data: data}:
	default:
		// Channel is full, skip this update
	}
}

// BroadcastReport is an agent listener.
func (h *WSHub) BroadcastReport(r agent.Report) {
	h.BroadcastUpdate("cycle", r)
}

// readPump pumps messages from the websocket connection to the hub
func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for message := range c.send {
		if err := c.conn.WriteJSON(message); err != nil {
			return
		}
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		Logger.Debug().Err(err).Msg("Error writing close message")
	}
}

// ServeWebSocket handles websocket requests from the peer
func (h *WSHub) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan WebSocketMessage, 256),
		hub:  h,
	}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close() //nolint:errcheck // hub is gone
		return
	}

	go client.writePump()
	go client.readPump()
}

// StatusResponse is served on /api/status
type StatusResponse struct {
	Settings         agent.Settings `json:"settings"`
	LastReport       *agent.Report  `json:"last_report,omitempty"`
	MQTTConnected    bool           `json:"mqtt_connected"`
	WebSocketClients int            `json:"websocket_clients"`
}

// RoomStatus combines the reported room with the decision taken for it.
type RoomStatus struct {
	state.Room
	Decision *agent.RoomDecision `json:"decision,omitempty"`
}

type WebHandlers struct {
	agent *agent.Agent
	hub   *WSHub
}

func NewWebHandlers(a *agent.Agent, hub *WSHub) *WebHandlers {
	return &WebHandlers{agent: a, hub: hub}
}

func (wh *WebHandlers) Register(monitor *MonitorServer) {
	monitor.AddHandler("/api/status", wh.APIStatus)
	monitor.AddHandler("/api/rooms", wh.APIRooms)
	monitor.AddHandler("/healthz", wh.Healthz)
	monitor.AddHandler("/ws", wh.hub.ServeWebSocket)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Error().Err(err).Msg("Error encoding response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// APIStatus returns the agent settings and the last cycle report as JSON
func (wh *WebHandlers) APIStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	status := StatusResponse{
		Settings:         wh.agent.Settings(),
		MQTTConnected:    MQTTConnected(),
		WebSocketClients: wh.hub.Clients(),
	}
	if report, ok := wh.agent.LastReport(); ok {
		status.LastReport = &report
	}
	writeJSON(w, status)
}

// APIRooms returns the rooms of the last successful snapshot
func (wh *WebHandlers) APIRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rooms := []RoomStatus{}
	if report, ok := wh.agent.LastReport(); ok && report.State != nil {
		for i, room := range report.State.Rooms {
			rs := RoomStatus{Room: room}
			if i < len(report.Rooms) {
				d := report.Rooms[i]
				rs.Decision = &d
			}
			rooms = append(rooms, rs)
		}
	}
	writeJSON(w, rooms)
}

// Healthz fails until a cycle has run and whenever the last cycle could not
// read the simulator.
func (wh *WebHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeString := func(s string) {
		if _, err := io.WriteString(w, s); err != nil {
			Logger.Error().Msgf("Error writing response: %v", err)
		}
	}
	w.Header().Set("Content-Type", "text/plain")
	report, ok := wh.agent.LastReport()
	switch {
	case !ok:
		w.WriteHeader(http.StatusServiceUnavailable)
		writeString("no cycle yet\n")
	case report.Error != "":
		w.WriteHeader(http.StatusServiceUnavailable)
		writeString("last cycle failed: " + report.Error + "\n")
	default:
		writeString("ok\n")
	}
}
