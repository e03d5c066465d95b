package chat

import (
	"fmt"
	"time"
)

// EventTypeSystem marks events generated by the service itself rather
// than by a user.
const EventTypeSystem = "system"

// SystemEvent is a service-generated notification (join, leave,
// user-not-found). Constructed per call, never stored.
type SystemEvent struct {
	EventTime time.Time `json:"event_time"`
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
}

// ChatMessage is a user-to-user message payload.
type ChatMessage struct {
	EventTime   time.Time `json:"event_time"`
	EventSender string    `json:"event_sender"`
	Content     string    `json:"content"`
}

// NewChatMessage builds a message stamped with the current time.
func NewChatMessage(sender, content string) ChatMessage {
	return ChatMessage{
		EventTime:   time.Now(),
		EventSender: sender,
		Content:     content,
	}
}

// NewJoinEvent builds the system notification for a user entering a
// room, or entering global chat when roomID is empty.
func NewJoinEvent(userID, roomID string) SystemEvent {
	content := fmt.Sprintf("user %s joined chat", userID)
	if roomID != "" {
		content = fmt.Sprintf("user %s joined room %s", userID, roomID)
	}
	return newSystemEvent(userID, content)
}

// NewLeaveEvent builds the system notification for a user leaving a
// room, or leaving global chat when roomID is empty.
func NewLeaveEvent(userID, roomID string) SystemEvent {
	content := fmt.Sprintf("user %s left chat", userID)
	if roomID != "" {
		content = fmt.Sprintf("user %s left room %s", userID, roomID)
	}
	return newSystemEvent(userID, content)
}

// NewUserNotFoundEvent builds the notice emitted when a message is
// addressed to a user with no live connections.
func NewUserNotFoundEvent(userID string) SystemEvent {
	return newSystemEvent(userID, fmt.Sprintf("user %s is not connected", userID))
}

func newSystemEvent(userID, content string) SystemEvent {
	return SystemEvent{
		EventTime: time.Now(),
		EventType: EventTypeSystem,
		UserID:    userID,
		Content:   content,
	}
}
