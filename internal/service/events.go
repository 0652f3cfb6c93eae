package service

import "time"

// Outbound websocket event names. These are a fixed contract with the
// frontend.
const (
	EventJoinedRoom     = "joined_room"
	EventRoomCreated    = "room_created"
	EventChatHistory    = "chat_history"
	EventReceiveMessage = "receive_message"
	EventError          = "error"
)

// MessagePayload is the receive_message payload.
type MessagePayload struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// HistoryEntry is one chat_history element.
type HistoryEntry struct {
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// JoinedRoomPayload confirms a join to the requesting socket.
type JoinedRoomPayload struct {
	RoomID string `json:"room_id"`
}

// RoomCreatedPayload confirms a creation to the requesting socket.
type RoomCreatedPayload struct {
	RoomID string `json:"room_id"`
	Mode   string `json:"mode"`
}

// ErrorPayload is the error event payload.
type ErrorPayload struct {
	Message string `json:"message"`
}
