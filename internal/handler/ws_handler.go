package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"story-moderator/internal/broadcast"
	"story-moderator/internal/models"
	"story-moderator/internal/service"
)

// Inbound websocket event names.
const (
	eventJoinRoom    = "join_room"
	eventCreateRoom  = "create_room"
	eventSendMessage = "send_message"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// inboundEvent is the envelope clients send.
type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinRoomRequest struct {
	RoomID   string `json:"room_id"`
	UserName string `json:"user_name"`
}

type createRoomRequest struct {
	UserName      string `json:"user_name"`
	ModeratorMode string `json:"moderatorMode"`
}

type sendMessageRequest struct {
	RoomID  string `json:"room_id"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// WSHandler upgrades connections and dispatches client events to the service.
type WSHandler struct {
	hub     *broadcast.Hub
	service *service.SessionService
	logger  *zap.Logger
}

// NewWSHandler creates the websocket handler.
func NewWSHandler(hub *broadcast.Hub, svc *service.SessionService, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, service: svc, logger: logger.Named("WSHandler")}
}

// ServeWS handles GET /ws.
func (h *WSHandler) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	socketID := uuid.NewString()
	client := broadcast.NewClient(socketID, conn, h.logger)
	h.hub.Register(client)
	h.logger.Info("Client connected", zap.String("socket_id", socketID))

	go client.WritePump()
	go client.ReadPump(h.hub,
		func(payload []byte) { h.dispatch(socketID, payload) },
		func() { h.logger.Info("Client disconnected", zap.String("socket_id", socketID)) },
	)
}

func (h *WSHandler) dispatch(socketID string, payload []byte) {
	var event inboundEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Warn("Malformed frame", zap.String("socket_id", socketID), zap.Error(err))
		h.hub.EmitTo(service.EventError, service.ErrorPayload{Message: "Malformed event"}, socketID)
		return
	}

	ctx := context.Background()
	switch event.Event {
	case eventJoinRoom:
		h.handleJoinRoom(ctx, socketID, event.Data)
	case eventCreateRoom:
		h.handleCreateRoom(ctx, socketID, event.Data)
	case eventSendMessage:
		h.handleSendMessage(ctx, socketID, event.Data)
	default:
		h.logger.Debug("Unknown event", zap.String("event", event.Event))
	}
}

func (h *WSHandler) handleJoinRoom(ctx context.Context, socketID string, data json.RawMessage) {
	var req joinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.hub.EmitTo(service.EventError, service.ErrorPayload{Message: "Malformed join_room payload"}, socketID)
		return
	}
	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		h.hub.EmitTo(service.EventError, service.ErrorPayload{Message: "Room not found"}, socketID)
		return
	}

	_, history, err := h.service.JoinRoom(ctx, socketID, req.UserName, roomID)
	if err != nil {
		h.logger.Warn("Join failed",
			zap.String("socket_id", socketID), zap.String("room_id", req.RoomID), zap.Error(err))
		h.hub.EmitTo(service.EventError, service.ErrorPayload{Message: joinErrorMessage(err)}, socketID)
		return
	}

	h.hub.EmitTo(service.EventJoinedRoom, service.JoinedRoomPayload{RoomID: req.RoomID}, socketID)
	h.hub.EmitTo(service.EventChatHistory, gin.H{"chat_history": service.HistoryPayload(history)}, socketID)
}

func (h *WSHandler) handleCreateRoom(ctx context.Context, socketID string, data json.RawMessage) {
	var req createRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.hub.EmitTo(service.EventError, service.ErrorPayload{Message: "Malformed create_room payload"}, socketID)
		return
	}
	mode := models.RoomMode(req.ModeratorMode)
	if req.ModeratorMode == "" {
		mode = models.ModeActive
	}

	room, err := h.service.CreateRoom(ctx, socketID, req.UserName, mode)
	if err != nil {
		h.logger.Warn("Create room failed", zap.String("socket_id", socketID), zap.Error(err))
		h.hub.EmitTo(service.EventError, service.ErrorPayload{Message: "Failed to create room"}, socketID)
		return
	}

	h.hub.EmitTo(service.EventJoinedRoom, service.JoinedRoomPayload{RoomID: room.ID.String()}, socketID)
	h.hub.EmitTo(service.EventRoomCreated,
		service.RoomCreatedPayload{RoomID: room.ID.String(), Mode: string(room.Mode)}, socketID)
}

// handleSendMessage never reports errors back; undeliverable messages are
// dropped silently.
func (h *WSHandler) handleSendMessage(ctx context.Context, socketID string, data json.RawMessage) {
	var req sendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		return
	}
	h.service.HandleMessage(ctx, socketID, roomID, req.Sender, req.Message)
}

func joinErrorMessage(err error) string {
	if errors.Is(err, models.ErrRoomNotFound) {
		return "Room not found"
	}
	return "Failed to join room"
}
