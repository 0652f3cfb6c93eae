// Package broadcast owns the websocket fan-out: room membership and ordered
// event delivery to every connected client.
package broadcast

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event is the wire envelope every outbound frame uses.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub manages active websocket connections grouped by room. Per-client send
// channels preserve delivery order; a full channel drops the client rather
// than blocking the emitter.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client            // socketID -> client
	rooms   map[string]map[string]*Client // roomID -> socketID -> client
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger.Named("Hub"),
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Register adds a connected client. An existing client with the same socket id
// is displaced.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	if old, ok := h.clients[client.SocketID]; ok {
		h.logger.Warn("Displacing existing connection", zap.String("socket_id", client.SocketID))
		old.closeSend()
	}
	h.clients[client.SocketID] = client
	h.mu.Unlock()
	h.logger.Debug("Client registered", zap.String("socket_id", client.SocketID))
}

// Unregister removes the client and its room memberships.
func (h *Hub) Unregister(socketID string) {
	h.mu.Lock()
	client, ok := h.clients[socketID]
	if ok {
		delete(h.clients, socketID)
		for roomID, members := range h.rooms {
			if _, in := members[socketID]; in {
				delete(members, socketID)
				if len(members) == 0 {
					delete(h.rooms, roomID)
				}
			}
		}
		client.closeSend()
	}
	h.mu.Unlock()
	if ok {
		h.logger.Debug("Client unregistered", zap.String("socket_id", socketID))
	}
}

// JoinRoom subscribes the client to room events.
func (h *Hub) JoinRoom(socketID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[socketID]
	if !ok {
		h.logger.Warn("JoinRoom for unknown client", zap.String("socket_id", socketID))
		return
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[socketID] = client
}

// Emit sends the event to every client subscribed to the room.
func (h *Hub) Emit(event string, data interface{}, roomID string) {
	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[roomID]))
	for _, client := range h.rooms[roomID] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	for _, client := range members {
		if !client.enqueue(payload) {
			h.logger.Warn("Send queue full, dropping client",
				zap.String("socket_id", client.SocketID), zap.String("room_id", roomID))
			h.Unregister(client.SocketID)
		}
	}
}

// EmitTo sends the event to a single client.
func (h *Hub) EmitTo(event string, data interface{}, socketID string) {
	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	client, ok := h.clients[socketID]
	h.mu.RUnlock()
	if !ok {
		h.logger.Debug("EmitTo for unknown client", zap.String("socket_id", socketID))
		return
	}
	if !client.enqueue(payload) {
		h.logger.Warn("Send queue full, dropping client", zap.String("socket_id", socketID))
		h.Unregister(socketID)
	}
}

// RoomSize reports the number of connected clients in the room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
