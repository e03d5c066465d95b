package backplane

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/example/distributed-chat-demo/events"
)

// fakeDispatcher records dispatched events.
type fakeDispatcher struct {
	dispatched []events.RoutedEvent
}

func (f *fakeDispatcher) Dispatch(evt events.RoutedEvent) {
	f.dispatched = append(f.dispatched, evt)
}

func TestClient_PublishNotConnected(t *testing.T) {
	c := NewClient(DefaultConfig())

	evt, err := events.NewRoutedEvent(events.EventReceiveMessage,
		events.ToAll(""), map[string]string{"content": "hi"})
	if err != nil {
		t.Fatalf("NewRoutedEvent() unexpected error: %v", err)
	}

	if err := c.Publish(context.Background(), evt); err == nil {
		t.Fatal("Publish() expected error on an unconnected client")
	}
	if c.Connected() {
		t.Error("Connected() = true, want false before Connect")
	}
}

func TestClient_HandleMessage(t *testing.T) {
	validEvt, err := events.NewRoutedEvent(events.EventUserJoined,
		events.ToRoom("lobby"), map[string]string{"content": "joined"})
	if err != nil {
		t.Fatalf("NewRoutedEvent() unexpected error: %v", err)
	}
	validData, err := json.Marshal(validEvt)
	if err != nil {
		t.Fatalf("failed to marshal envelope: %v", err)
	}

	tests := []struct {
		name           string
		data           []byte
		wantDispatched int
	}{
		{
			name:           "valid envelope reaches the dispatcher",
			data:           validData,
			wantDispatched: 1,
		},
		{
			name:           "malformed payload is dropped",
			data:           []byte("{not json"),
			wantDispatched: 0,
		},
		{
			name:           "empty payload is dropped",
			data:           nil,
			wantDispatched: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(DefaultConfig())
			dispatcher := &fakeDispatcher{}

			c.handleMessage(dispatcher, tt.data)

			if len(dispatcher.dispatched) != tt.wantDispatched {
				t.Fatalf("dispatched %d events, want %d", len(dispatcher.dispatched), tt.wantDispatched)
			}
			if tt.wantDispatched == 1 {
				got := dispatcher.dispatched[0]
				if got.Event != events.EventUserJoined {
					t.Errorf("Event = %q, want %q", got.Event, events.EventUserJoined)
				}
				if got.Target.Kind != events.TargetRoom || got.Target.RoomID != "lobby" {
					t.Errorf("Target = %+v, want room lobby", got.Target)
				}
			}
		})
	}
}

func TestClient_CloseNeverConnected(t *testing.T) {
	c := NewClient(DefaultConfig())
	if err := c.Close(); err != nil {
		t.Errorf("Close() unexpected error on an unconnected client: %v", err)
	}
}
