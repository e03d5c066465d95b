// Package events defines the wire format shared between the router,
// the backplane and the hub: the routed-event envelope and its
// delivery target.
package events

import "encoding/json"

// Client-facing event names.
const (
	EventUserJoined     = "UserJoined"
	EventUserLeaved     = "UserLeaved"
	EventReceiveMessage = "ReceiveMessage"
	EventBroadcast      = "Broadcast"
)

// SubjectRouted is the backplane subject all routed events travel on.
const SubjectRouted = "chat.events.routed"

// TargetKind discriminates the delivery target of a routed event.
type TargetKind string

const (
	// TargetConnections addresses an explicit set of connection IDs.
	TargetConnections TargetKind = "connections"
	// TargetRoom addresses every connection joined to a room.
	TargetRoom TargetKind = "room"
	// TargetBroadcast addresses every connection in the cluster.
	TargetBroadcast TargetKind = "broadcast"
)

// Target is the resolved delivery target carried on the wire. Exactly
// one of the kind-specific fields is meaningful for a given Kind.
type Target struct {
	Kind        TargetKind `json:"kind"`
	RoomID      string     `json:"room_id,omitempty"`
	ConnIDs     []string   `json:"conn_ids,omitempty"`
	ExcludeConn string     `json:"exclude_conn,omitempty"`
}

// ToConnections targets the given connection IDs.
func ToConnections(connIDs []string) Target {
	return Target{Kind: TargetConnections, ConnIDs: connIDs}
}

// ToRoom targets every connection joined to roomID.
func ToRoom(roomID string) Target {
	return Target{Kind: TargetRoom, RoomID: roomID}
}

// ToAll targets every connection, optionally excluding one (the
// sender's own connection).
func ToAll(excludeConn string) Target {
	return Target{Kind: TargetBroadcast, ExcludeConn: excludeConn}
}

// RoutedEvent is the envelope published to the backplane. Every
// instance receives it and delivers the payload to whichever target
// connections it hosts locally.
type RoutedEvent struct {
	Event   string          `json:"event"`
	Target  Target          `json:"target"`
	Payload json.RawMessage `json:"payload"`
}

// NewRoutedEvent marshals payload into an envelope for the given
// event name and target.
func NewRoutedEvent(event string, target Target, payload any) (RoutedEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return RoutedEvent{}, err
	}
	return RoutedEvent{Event: event, Target: target, Payload: data}, nil
}
