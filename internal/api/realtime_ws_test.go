package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	realtimeTypes "github.com/chasqui-io/chasqui/pkg/realtime"
)

func dialRealtime(t *testing.T, srvURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srvURL, "http") + "/realtime"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial realtime websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func decodePayload(t *testing.T, payload any, out any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
}

func TestRealtimeSubscribeGetsSnapshotThenEvents(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router())
	defer srv.Close()

	conn := dialRealtime(t, srv.URL)

	if err := conn.WriteJSON(realtimeTypes.ClientEnvelope{
		Type:   realtimeTypes.ClientMessageTypeSubscribe,
		Topics: []string{"sessions.acme.lifecycle"},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snapshotMsg realtimeTypes.ServerEnvelope
	if err := conn.ReadJSON(&snapshotMsg); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshotMsg.Type != realtimeTypes.ServerMessageTypeSnapshot {
		t.Fatalf("first message type = %q, want snapshot", snapshotMsg.Type)
	}
	var snapshot realtimeTypes.SessionSnapshot
	decodePayload(t, snapshotMsg.Payload, &snapshot)
	if snapshot.SessionID != "acme" || snapshot.Connected {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	// Bring the session up; the subscriber should see qr-issued first.
	env.manager.Connect("acme", true)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var eventMsg realtimeTypes.ServerEnvelope
	if err := conn.ReadJSON(&eventMsg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if eventMsg.Type != realtimeTypes.ServerMessageTypeEvent {
		t.Fatalf("event type = %q", eventMsg.Type)
	}
	var ev realtimeTypes.LifecycleEvent
	decodePayload(t, eventMsg.Payload, &ev)
	if ev.Event != "qr-issued" || ev.SessionID != "acme" || ev.QRCode == "" {
		t.Fatalf("unexpected lifecycle event: %+v", ev)
	}

	// Pairing produces authenticated then connected.
	env.adapter.Pair("acme")
	sawConnected := false
	for i := 0; i < 3 && !sawConnected; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&eventMsg); err != nil {
			t.Fatalf("read event: %v", err)
		}
		decodePayload(t, eventMsg.Payload, &ev)
		if ev.Event == "connected" {
			sawConnected = true
		}
	}
	if !sawConnected {
		t.Fatal("connected event never arrived")
	}
}

func TestRealtimeUnsupportedTopic(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router())
	defer srv.Close()

	conn := dialRealtime(t, srv.URL)

	if err := conn.WriteJSON(realtimeTypes.ClientEnvelope{
		Type:   realtimeTypes.ClientMessageTypeSubscribe,
		Topics: []string{"not.a.topic"},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg realtimeTypes.ServerEnvelope
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != realtimeTypes.ServerMessageTypeError {
		t.Fatalf("expected error envelope, got %q", msg.Type)
	}
}

func TestRealtimePing(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router())
	defer srv.Close()

	conn := dialRealtime(t, srv.URL)

	if err := conn.WriteJSON(realtimeTypes.ClientEnvelope{Type: realtimeTypes.ClientMessageTypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg realtimeTypes.ServerEnvelope
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if msg.Type != realtimeTypes.ServerMessageTypePong {
		t.Fatalf("expected pong, got %q", msg.Type)
	}
}

func TestRealtimeUnsubscribeStopsEvents(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router())
	defer srv.Close()

	conn := dialRealtime(t, srv.URL)

	topic := "sessions.acme.lifecycle"
	if err := conn.WriteJSON(realtimeTypes.ClientEnvelope{
		Type:   realtimeTypes.ClientMessageTypeSubscribe,
		Topics: []string{topic},
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snapshotMsg realtimeTypes.ServerEnvelope
	if err := conn.ReadJSON(&snapshotMsg); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}

	if err := conn.WriteJSON(realtimeTypes.ClientEnvelope{
		Type:   realtimeTypes.ClientMessageTypeUnsubscribe,
		Topics: []string{topic},
	}); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	// Ping/pong round trip guarantees the unsubscribe was processed.
	if err := conn.WriteJSON(realtimeTypes.ClientEnvelope{Type: realtimeTypes.ClientMessageTypePing}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	var pong realtimeTypes.ServerEnvelope
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}

	env.manager.Connect("acme", false)

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var stray realtimeTypes.ServerEnvelope
	if err := conn.ReadJSON(&stray); err == nil {
		t.Fatalf("received event after unsubscribe: %+v", stray)
	}
}
