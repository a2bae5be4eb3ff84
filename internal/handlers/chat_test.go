package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trip-share-backend/internal/services"

	"github.com/gorilla/websocket"
)

// groupRoom creates a trip of owner joined by member and returns its room id
func (e *testEnv) groupRoom(t *testing.T, owner, member string) string {
	t.Helper()
	res := e.post(t, owner, "/trips", tripBody(owner, "Chat")).expect(t, http.StatusOK)
	tripID := res.object(t, "trip")["id"].(string)
	roomID := res.object(t, "room")["id"].(string)
	e.post(t, member, "/trips/join", map[string]any{"trip_id": tripID}).expect(t, http.StatusOK)
	return roomID
}

func TestChatMessages(t *testing.T) {
	e := newTestEnv(t)
	ana := e.user(t, "ana")
	bob := e.user(t, "bob")
	zoe := e.user(t, "zoe")
	roomID := e.groupRoom(t, ana, bob)

	e.post(t, ana, "/chat/messages", map[string]any{"room_id": roomID, "content": "  "}).expect(t, http.StatusBadRequest)
	e.post(t, zoe, "/chat/messages", map[string]any{"room_id": roomID, "content": "hola"}).expect(t, http.StatusForbidden)
	e.post(t, ana, "/chat/messages", map[string]any{"room_id": roomID, "content": "hola", "user_id": bob}).
		expect(t, http.StatusForbidden)

	res := e.post(t, ana, "/chat/messages", map[string]any{"room_id": roomID, "content": "hola"}).expect(t, http.StatusOK)
	if res.object(t, "message")["content"] != "hola" {
		t.Errorf("message = %v", res.body)
	}
	e.post(t, bob, "/chat/messages", map[string]any{"room_id": roomID, "content": "buenas"}).expect(t, http.StatusOK)

	msgs := e.get(t, bob, "/chat/rooms/"+roomID+"/messages?limit=1").expect(t, http.StatusOK).list(t, "messages")
	if len(msgs) != 1 {
		t.Errorf("messages = %v", msgs)
	}
	e.get(t, bob, "/chat/rooms/"+roomID+"/messages?limit=x").expect(t, http.StatusBadRequest)
	e.get(t, zoe, "/chat/rooms/"+roomID+"/messages").expect(t, http.StatusForbidden)
	e.get(t, bob, "/chat/rooms/missing/messages").expect(t, http.StatusNotFound)

	rooms := e.get(t, bob, "/chat/rooms").expect(t, http.StatusOK).list(t, "rooms")
	if len(rooms) != 1 {
		t.Errorf("rooms = %v", rooms)
	}
	members := e.get(t, bob, "/chat/rooms/"+roomID+"/members").expect(t, http.StatusOK).list(t, "members")
	if len(members) != 2 {
		t.Errorf("members = %v", members)
	}
}

func TestChatFiles(t *testing.T) {
	e := newTestEnv(t)
	ana := e.user(t, "ana")
	bob := e.user(t, "bob")
	roomID := e.groupRoom(t, ana, bob)

	e.upload(t, ana, "/chat/files", map[string]string{"room_id": roomID}, "x.exe", "application/x-msdownload", "x").
		expect(t, http.StatusBadRequest)

	res := e.upload(t, ana, "/chat/files", map[string]string{"room_id": roomID}, "plan.pdf", "application/pdf", "content").
		expect(t, http.StatusOK)
	msg := res.object(t, "message")
	if msg["is_file"] != true || msg["content"] != "📎 plan.pdf" || msg["file_url"] == nil {
		t.Fatalf("file message = %v", msg)
	}
	if e.objects.Len() != 1 {
		t.Errorf("objects = %d", e.objects.Len())
	}

	stats := e.get(t, bob, "/chat/rooms/"+roomID+"/files/stats").expect(t, http.StatusOK).list(t, "stats")
	if len(stats) != 1 || stats[0].(map[string]any)["total_bytes"] != 7.0 {
		t.Errorf("stats = %v", stats)
	}

	msgID := msg["id"].(string)
	del := func(userID string) response {
		req := httptest.NewRequest(http.MethodDelete, "/chat/messages/"+msgID+"/file", nil)
		return e.do(t, req, userID)
	}
	del(bob).expect(t, http.StatusForbidden)
	res = del(ana).expect(t, http.StatusOK)
	if res.object(t, "message")["is_file"] != false || e.objects.Len() != 0 {
		t.Errorf("delete = %v objects = %d", res.body, e.objects.Len())
	}
}

func TestChatInviteAndTyping(t *testing.T) {
	e := newTestEnv(t)
	ana := e.user(t, "ana")
	bob := e.user(t, "bob")
	roomID := e.groupRoom(t, ana, bob)

	e.post(t, ana, "/chat/invite", map[string]any{"room_id": roomID}).expect(t, http.StatusBadRequest)
	// no mailer is configured
	e.post(t, ana, "/chat/invite", map[string]any{"room_id": roomID, "email": "amiga@example.com"}).
		expect(t, http.StatusBadRequest)

	e.post(t, bob, "/chat/rooms/"+roomID+"/typing", map[string]any{"typing": true}).expect(t, http.StatusOK)
	res := e.get(t, ana, "/chat/rooms/"+roomID+"/typing").expect(t, http.StatusOK)
	if ids := res.list(t, "user_ids"); len(ids) != 0 {
		t.Errorf("typing without a tracker = %v", ids)
	}
}

func dialWS(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=test:" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) services.WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg services.WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return msg
}

func waitOnline(t *testing.T, hub *services.WSHub, userID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !hub.IsOnline(userID) {
		if time.Now().After(deadline) {
			t.Fatalf("%s never came online", userID)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocket(t *testing.T) {
	e := newTestEnv(t)
	ana := e.user(t, "ana")
	bob := e.user(t, "bob")
	roomID := e.groupRoom(t, ana, bob)

	srv := httptest.NewServer(e.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("ws without token = %d", resp.StatusCode)
	}

	conn := dialWS(t, srv, bob)
	waitOnline(t, e.hub, bob)

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatal(err)
	}
	if ev := readEvent(t, conn); ev.Type != services.EventPong {
		t.Errorf("event = %+v, want pong", ev)
	}

	conn.WriteJSON(map[string]any{"type": "dance"})
	if ev := readEvent(t, conn); ev.Type != services.EventError {
		t.Errorf("event = %+v, want error", ev)
	}

	e.post(t, ana, "/chat/messages", map[string]any{"room_id": roomID, "content": "¿vamos?"}).expect(t, http.StatusOK)
	ev := readEvent(t, conn)
	if ev.Type != services.EventChatMessage || ev.RoomID != roomID {
		t.Errorf("event = %+v, want chat message", ev)
	}
}
