package api

// WSRequest is an inbound frame on the chat socket.
type WSRequest struct {
	Type    string `json:"type"`
	UserID  string `json:"user_id,omitempty"`
	Content string `json:"content,omitempty"`
}

// Inbound frame types.
const (
	WSTypeSendTo  = "send_to"
	WSTypeSendAll = "send_all"
)

// SendMessageRequest is the body of POST /api/v1/messages.
type SendMessageRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
	SendBy  string `json:"send_by"`
}

// BroadcastRequest is the body of POST /api/v1/broadcast.
type BroadcastRequest struct {
	Content string `json:"content"`
	SendBy  string `json:"send_by"`
}

// ConnectionsResponse lists a user's live connections.
type ConnectionsResponse struct {
	UserID  string   `json:"user_id"`
	ConnIDs []string `json:"conn_ids"`
}

// RoomMembersResponse reports a room's locally hosted member count.
type RoomMembersResponse struct {
	RoomID  string `json:"room_id"`
	Members int    `json:"members"`
}

// AcceptedResponse acknowledges a routed send.
type AcceptedResponse struct {
	Status string `json:"status"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
