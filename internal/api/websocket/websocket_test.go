package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/auth"
	"github.com/KevinKickass/OpenProfinetDevice/internal/profinet"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type fakeValidator map[string][]auth.Permission

func (f fakeValidator) ValidateToken(token string) ([]auth.Permission, error) {
	perms, ok := f[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return perms, nil
}

type fixedSnapshot struct{}

func (fixedSnapshot) Snapshot() *profinet.Snapshot {
	return &profinet.Snapshot{State: profinet.StateWaitingForConnection, StationName: "echo-device"}
}

type received struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startHub(t *testing.T) (*Hub, string, context.CancelFunc) {
	t.Helper()
	validator := fakeValidator{
		"operator": {auth.PermReadStatus, auth.PermLive},
		"monitor":  {auth.PermReadStatus},
	}
	hub := NewHub(zap.NewNop(), validator, fixedSnapshot{})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http"), cancel
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessages reads until n messages arrived. The write pump may coalesce
// several messages into one frame separated by newlines.
func readMessages(t *testing.T, conn *websocket.Conn, n int) []received {
	t.Helper()
	var out []received
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(out) < n {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read after %d messages: %v", len(out), err)
		}
		for _, line := range bytes.Split(data, []byte{'\n'}) {
			var msg received
			if err := json.Unmarshal(line, &msg); err != nil {
				t.Fatalf("decode %q: %v", line, err)
			}
			out = append(out, msg)
		}
	}
	return out
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.GetClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAuthenticatedClientReceivesNotifications(t *testing.T) {
	hub, url, _ := startHub(t)
	conn := dial(t, url)

	if err := conn.WriteJSON(authMessage{Type: "auth", Token: "operator"}); err != nil {
		t.Fatal(err)
	}
	msgs := readMessages(t, conn, 2)
	if msgs[0].Type != MessageTypeAuthSuccess || msgs[1].Type != MessageTypeSnapshot {
		t.Fatalf("messages = %+v", msgs)
	}
	var snap profinet.Snapshot
	if err := json.Unmarshal(msgs[1].Data, &snap); err != nil || snap.StationName != "echo-device" {
		t.Fatalf("snapshot = %s", msgs[1].Data)
	}

	waitForClients(t, hub, 1)

	events := make(chan profinet.Notification, 1)
	events <- profinet.Notification{
		Type:      profinet.NotificationStateChanged,
		State:     profinet.StateConnected,
		Previous:  profinet.StateWaitingForConnection,
		AREP:      3,
		Timestamp: time.Now(),
	}
	close(events)
	hub.Forward(context.Background(), events)

	msgs = readMessages(t, conn, 1)
	var state DeviceStateData
	if msgs[0].Type != MessageTypeDeviceState {
		t.Fatalf("type = %s", msgs[0].Type)
	}
	if err := json.Unmarshal(msgs[0].Data, &state); err != nil || state.State != profinet.StateConnected || state.AREP != 3 {
		t.Fatalf("state = %s", msgs[0].Data)
	}
}

func TestAuthenticationRejected(t *testing.T) {
	tests := []struct {
		name string
		msg  authMessage
	}{
		{"wrong type", authMessage{Type: "hello", Token: "operator"}},
		{"missing token", authMessage{Type: "auth"}},
		{"unknown token", authMessage{Type: "auth", Token: "nope"}},
		{"no live permission", authMessage{Type: "auth", Token: "monitor"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, url, _ := startHub(t)
			conn := dial(t, url)
			if err := conn.WriteJSON(tt.msg); err != nil {
				t.Fatal(err)
			}
			msgs := readMessages(t, conn, 1)
			if msgs[0].Type != MessageTypeAuthFailed {
				t.Fatalf("type = %s", msgs[0].Type)
			}
			if _, _, err := conn.ReadMessage(); err == nil {
				t.Fatal("connection still open")
			}
			if hub.GetClientCount() != 0 {
				t.Fatal("rejected client registered")
			}
		})
	}
}

func TestHubStopClosesClients(t *testing.T) {
	hub, url, cancel := startHub(t)
	conn := dial(t, url)
	conn.WriteJSON(authMessage{Type: "auth", Token: "operator"})
	readMessages(t, conn, 2)
	waitForClients(t, hub, 1)

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) {
		t.Fatalf("expected close, got %v", err)
	}
}

func TestNewNotificationMessage(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		in   profinet.NotificationType
		want MessageType
	}{
		{profinet.NotificationStateChanged, MessageTypeDeviceState},
		{profinet.NotificationSubmodulePlugged, MessageTypeSubmodulePlugged},
		{profinet.NotificationAlarm, MessageTypeAlarm},
		{profinet.NotificationConnectionAborted, MessageTypeConnectionAborted},
	}
	for _, tt := range tests {
		msg := NewNotificationMessage(profinet.Notification{Type: tt.in, Timestamp: at})
		if msg.Type != tt.want || !msg.Timestamp.Equal(at) {
			t.Errorf("%s: got %s at %v", tt.in, msg.Type, msg.Timestamp)
		}
	}
}
