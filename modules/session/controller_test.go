package session

import (
	"context"
	"errors"
	"testing"

	"github.com/example/distributed-chat-demo/domain/chat"
	"github.com/example/distributed-chat-demo/events"
	"github.com/example/distributed-chat-demo/modules/hub"
)

type fakeBinder struct {
	bound     [][2]string // userID, connID
	unbound   [][2]string
	bindErr   error
	unbindErr error
}

func (f *fakeBinder) Bind(_ context.Context, userID, connID string) error {
	if f.bindErr != nil {
		return f.bindErr
	}
	f.bound = append(f.bound, [2]string{userID, connID})
	return nil
}

func (f *fakeBinder) Unbind(_ context.Context, userID, connID string) error {
	f.unbound = append(f.unbound, [2]string{userID, connID})
	return f.unbindErr
}

type fakeTable struct {
	registered   []string
	unregistered []string
	joined       [][2]string // connID, roomID
	left         [][2]string
}

func (f *fakeTable) Register(client *hub.Client) {
	f.registered = append(f.registered, client.ID)
}

func (f *fakeTable) Unregister(connID string) {
	f.unregistered = append(f.unregistered, connID)
}

func (f *fakeTable) JoinRoom(connID, roomID string) {
	f.joined = append(f.joined, [2]string{connID, roomID})
}

func (f *fakeTable) LeaveRoom(connID, roomID string) {
	f.left = append(f.left, [2]string{connID, roomID})
}

type routedCall struct {
	method  string // "user", "room", "broadcast"
	event   string
	roomID  string
	userID  string
	exclude string
	payload any
}

type fakeRouter struct {
	calls []routedCall
	err   error
}

func (f *fakeRouter) SendToUser(_ context.Context, userID string, msg chat.ChatMessage) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, routedCall{method: "user", userID: userID, payload: msg})
	return nil
}

func (f *fakeRouter) SendToRoom(_ context.Context, roomID, event string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, routedCall{method: "room", roomID: roomID, event: event, payload: payload})
	return nil
}

func (f *fakeRouter) Broadcast(_ context.Context, event string, payload any, excludeConn string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, routedCall{method: "broadcast", event: event, exclude: excludeConn, payload: payload})
	return nil
}

func newController() (*Controller, *fakeBinder, *fakeTable, *fakeRouter) {
	binder := &fakeBinder{}
	table := &fakeTable{}
	router := &fakeRouter{}
	return NewController(binder, table, router), binder, table, router
}

func TestController_ConnectWithRoom(t *testing.T) {
	ctrl, binder, table, router := newController()

	client, err := ctrl.Connect(context.Background(), "conn-1", "alice", "lobby", nil)
	if err != nil {
		t.Fatalf("Connect() unexpected error: %v", err)
	}

	if client.UserID != "alice" || client.RoomID != "lobby" {
		t.Errorf("client = %+v, want userID alice roomID lobby", client)
	}
	if len(binder.bound) != 1 || binder.bound[0] != [2]string{"alice", "conn-1"} {
		t.Errorf("bound = %v, want alice/conn-1", binder.bound)
	}
	if len(table.joined) != 1 || table.joined[0] != [2]string{"conn-1", "lobby"} {
		t.Errorf("joined = %v, want conn-1/lobby", table.joined)
	}

	if len(router.calls) != 1 {
		t.Fatalf("routed %d events, want 1 join notice", len(router.calls))
	}
	call := router.calls[0]
	if call.method != "room" || call.roomID != "lobby" || call.event != events.EventUserJoined {
		t.Errorf("join notice = %+v, want UserJoined scoped to lobby", call)
	}
	notice, ok := call.payload.(chat.SystemEvent)
	if !ok {
		t.Fatalf("payload type = %T, want chat.SystemEvent", call.payload)
	}
	if notice.UserID != "alice" {
		t.Errorf("notice.UserID = %q, want alice", notice.UserID)
	}
}

func TestController_ConnectWithoutRoomBroadcastsGlobally(t *testing.T) {
	ctrl, _, _, router := newController()

	if _, err := ctrl.Connect(context.Background(), "conn-1", "bob", "", nil); err != nil {
		t.Fatalf("Connect() unexpected error: %v", err)
	}

	if len(router.calls) != 1 {
		t.Fatalf("routed %d events, want 1", len(router.calls))
	}
	if router.calls[0].method != "broadcast" {
		t.Errorf("join notice method = %q, want broadcast (global scope)", router.calls[0].method)
	}
}

func TestController_ConnectDefaultsIdentityToConnID(t *testing.T) {
	ctrl, binder, _, _ := newController()

	client, err := ctrl.Connect(context.Background(), "conn-7", "", "", nil)
	if err != nil {
		t.Fatalf("Connect() unexpected error: %v", err)
	}

	if client.UserID != "conn-7" {
		t.Errorf("client.UserID = %q, want conn-7 (connection ID fallback)", client.UserID)
	}
	if binder.bound[0] != [2]string{"conn-7", "conn-7"} {
		t.Errorf("bound = %v, want conn-7/conn-7", binder.bound)
	}
}

func TestController_ConnectBindFailureRejects(t *testing.T) {
	ctrl, binder, table, router := newController()
	binder.bindErr = errors.New("redis down")

	if _, err := ctrl.Connect(context.Background(), "conn-1", "alice", "lobby", nil); err == nil {
		t.Fatal("Connect() expected error when registry write fails")
	}

	if len(table.unregistered) != 1 {
		t.Errorf("unregistered = %v, want the rejected connection removed", table.unregistered)
	}
	if len(router.calls) != 0 {
		t.Errorf("routed %d events, want 0 after rejected connect", len(router.calls))
	}
}

func TestController_ConnectNoticeFailureUnwinds(t *testing.T) {
	ctrl, binder, table, router := newController()
	router.err = errors.New("backplane unavailable")

	if _, err := ctrl.Connect(context.Background(), "conn-1", "alice", "lobby", nil); err == nil {
		t.Fatal("Connect() expected error when join notice cannot be published")
	}

	if len(binder.unbound) != 1 || binder.unbound[0] != [2]string{"alice", "conn-1"} {
		t.Errorf("unbound = %v, want the binding reversed", binder.unbound)
	}
	if len(table.unregistered) != 1 {
		t.Errorf("unregistered = %v, want the connection removed", table.unregistered)
	}
}

func TestController_ConnectDisconnectPairsEvents(t *testing.T) {
	tests := []struct {
		name      string
		roomID    string
		wantScope string
	}{
		{name: "room scope", roomID: "lobby", wantScope: "room"},
		{name: "global scope", roomID: "", wantScope: "broadcast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, binder, table, router := newController()

			client, err := ctrl.Connect(context.Background(), "conn-1", "alice", tt.roomID, nil)
			if err != nil {
				t.Fatalf("Connect() unexpected error: %v", err)
			}
			ctrl.Disconnect(context.Background(), client, nil)

			var joined, leaved int
			for _, call := range router.calls {
				switch call.event {
				case events.EventUserJoined:
					joined++
					if call.method != tt.wantScope {
						t.Errorf("join scope = %q, want %q", call.method, tt.wantScope)
					}
				case events.EventUserLeaved:
					leaved++
					if call.method != tt.wantScope {
						t.Errorf("leave scope = %q, want %q (same as join)", call.method, tt.wantScope)
					}
				}
			}
			if joined != 1 || leaved != 1 {
				t.Errorf("got %d UserJoined and %d UserLeaved, want exactly 1 of each", joined, leaved)
			}

			if len(binder.unbound) != 1 {
				t.Errorf("unbound = %v, want the binding removed", binder.unbound)
			}
			if len(table.unregistered) != 1 {
				t.Errorf("unregistered = %v, want the connection removed", table.unregistered)
			}
		})
	}
}

func TestController_DisconnectCleanupIsUnconditional(t *testing.T) {
	ctrl, binder, table, router := newController()

	client, err := ctrl.Connect(context.Background(), "conn-1", "alice", "lobby", nil)
	if err != nil {
		t.Fatalf("Connect() unexpected error: %v", err)
	}

	// Abrupt transport failure plus a failing registry: cleanup still
	// runs to completion and the leave notice still goes out.
	binder.unbindErr = errors.New("redis down")
	ctrl.Disconnect(context.Background(), client, errors.New("connection reset by peer"))

	if len(binder.unbound) != 1 {
		t.Errorf("unbind attempts = %d, want 1", len(binder.unbound))
	}
	if len(table.left) != 1 || table.left[0] != [2]string{"conn-1", "lobby"} {
		t.Errorf("left = %v, want conn-1/lobby", table.left)
	}
	if len(table.unregistered) != 1 {
		t.Errorf("unregistered = %v, want conn-1 removed", table.unregistered)
	}

	last := router.calls[len(router.calls)-1]
	if last.event != events.EventUserLeaved {
		t.Errorf("last routed event = %q, want UserLeaved", last.event)
	}
}

func TestController_SendTo(t *testing.T) {
	ctrl, _, _, router := newController()

	if err := ctrl.SendTo(context.Background(), "carol", "hi", "bob"); err != nil {
		t.Fatalf("SendTo() unexpected error: %v", err)
	}

	if len(router.calls) != 1 || router.calls[0].method != "user" {
		t.Fatalf("calls = %+v, want one SendToUser", router.calls)
	}
	if router.calls[0].userID != "carol" {
		t.Errorf("target user = %q, want carol", router.calls[0].userID)
	}
	msg := router.calls[0].payload.(chat.ChatMessage)
	if msg.EventSender != "bob" || msg.Content != "hi" {
		t.Errorf("message = %+v, want sender bob content hi", msg)
	}
}

func TestController_SendAllExcludesSenderConnection(t *testing.T) {
	ctrl, _, _, router := newController()

	if err := ctrl.SendAll(context.Background(), "hello", "bob", "conn-1"); err != nil {
		t.Fatalf("SendAll() unexpected error: %v", err)
	}

	call := router.calls[0]
	if call.method != "broadcast" || call.event != events.EventReceiveMessage {
		t.Errorf("call = %+v, want ReceiveMessage broadcast", call)
	}
	if call.exclude != "conn-1" {
		t.Errorf("exclude = %q, want the sender's own connection", call.exclude)
	}
}
