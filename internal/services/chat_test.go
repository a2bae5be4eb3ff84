package services

import (
	"context"
	"strings"
	"sync"
	"testing"
)

type fakeTyping struct {
	mu     sync.Mutex
	typing map[string]bool
}

func (f *fakeTyping) SetTyping(ctx context.Context, roomID, userID string, typing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.typing == nil {
		f.typing = make(map[string]bool)
	}
	f.typing[roomID+"/"+userID] = typing
	return nil
}

func (f *fakeTyping) Typing(ctx context.Context, roomID string, userIDs []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, id := range userIDs {
		if f.typing[roomID+"/"+id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// groupChat returns a trip group room shared by owner and member
func groupChat(t *testing.T, e *testEnv) (roomID, owner, member string) {
	t.Helper()
	owner = e.user(t, "ana")
	member = e.user(t, "bob")
	trip := e.trip(t, owner, "Chat trip", 4)
	if _, err := e.trips.Join(context.Background(), member, trip.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	room, err := e.rooms.GroupRoom(context.Background(), trip)
	if err != nil {
		t.Fatalf("group room: %v", err)
	}
	return room.ID, owner, member
}

func TestSendMessage(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	roomID, owner, member := groupChat(t, e)
	outsider := e.user(t, "zoe")

	_, err := e.chat.Send(ctx, owner, roomID, "   ")
	expectKind(t, err, KindValidation)
	_, err = e.chat.Send(ctx, owner, roomID, strings.Repeat("a", maxMessageLength+1))
	expectKind(t, err, KindValidation)
	_, err = e.chat.Send(ctx, outsider, roomID, "hola")
	expectKind(t, err, KindAuthorization)
	_, err = e.chat.Send(ctx, owner, "missing", "hola")
	expectKind(t, err, KindNotFound)

	msg, err := e.chat.Send(ctx, owner, roomID, " hola a todos ")
	mustNoErr(t, err, "send")
	if msg.Content != "hola a todos" {
		t.Errorf("content = %q", msg.Content)
	}
	if e.hub.count(member, EventChatMessage) != 1 {
		t.Error("member should receive the message")
	}
	if e.hub.count(owner, EventChatMessage) != 0 {
		t.Error("sender should not receive their own message")
	}

	rooms, err := e.chat.ListRooms(ctx, member)
	mustNoErr(t, err, "list rooms")
	if len(rooms) != 1 || rooms[0].LastMessage == nil || rooms[0].LastMessage.ID != msg.ID {
		t.Errorf("rooms = %+v", rooms)
	}
}

func TestListMessagesLimit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	roomID, owner, _ := groupChat(t, e)
	for i := 0; i < 5; i++ {
		_, err := e.chat.Send(ctx, owner, roomID, strings.Repeat("x", i+1))
		mustNoErr(t, err, "send")
		e.tick()
	}

	msgs, err := e.chat.ListMessages(ctx, owner, roomID, 2)
	mustNoErr(t, err, "list")
	if len(msgs) != 2 || msgs[0].Content != "xxxx" || msgs[1].Content != "xxxxx" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestUploadAndDeleteFile(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	roomID, owner, member := groupChat(t, e)

	_, err := e.chat.UploadFile(ctx, owner, roomID, FileUpload{Name: "x.exe", ContentType: "application/x-msdownload", Size: 1, Body: strings.NewReader("x")})
	expectKind(t, err, KindValidation)
	_, err = e.chat.UploadFile(ctx, owner, roomID, FileUpload{Name: "big.pdf", ContentType: "application/pdf", Size: maxFileSize + 1, Body: strings.NewReader("x")})
	expectKind(t, err, KindValidation)

	msg, err := e.chat.UploadFile(ctx, owner, roomID, FileUpload{Name: "itinerario.pdf", ContentType: "application/pdf", Size: 7, Body: strings.NewReader("content")})
	mustNoErr(t, err, "upload")
	if !msg.IsFile || msg.Content != "📎 itinerario.pdf" || msg.FileURL == nil {
		t.Fatalf("file message = %+v", msg)
	}
	if !e.objects.Has(chatFilesBucket, *msg.FilePath) {
		t.Fatal("object was not stored")
	}
	_, err = e.chat.UploadFile(ctx, owner, roomID, FileUpload{Name: "foto.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")})
	mustNoErr(t, err, "upload png")

	stats, err := e.chat.FileStats(ctx, member, roomID)
	mustNoErr(t, err, "stats")
	if len(stats) != 2 || stats[0].FileType != "application/pdf" || stats[0].TotalBytes != 7 {
		t.Errorf("stats = %+v", stats)
	}

	_, err = e.chat.DeleteFile(ctx, member, msg.ID)
	expectKind(t, err, KindAuthorization)

	deleted, err := e.chat.DeleteFile(ctx, owner, msg.ID)
	mustNoErr(t, err, "delete")
	if deleted.IsFile || deleted.Content != deletedFileContent {
		t.Errorf("deleted message = %+v", deleted)
	}
	if e.objects.Len() != 1 {
		t.Errorf("objects left = %d, want 1", e.objects.Len())
	}
	_, err = e.chat.DeleteFile(ctx, owner, msg.ID)
	expectKind(t, err, KindBusinessRule)
}

func TestMembersAndInvite(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	roomID, owner, member := groupChat(t, e)

	members, err := e.chat.Members(ctx, member, roomID)
	mustNoErr(t, err, "members")
	if len(members) != 2 {
		t.Errorf("members = %+v", members)
	}

	err = e.chat.Invite(ctx, owner, roomID, "amiga@example.com")
	expectKind(t, err, KindBusinessRule)

	mailer := &fakeMailer{}
	chat := NewChatService(e.stores, e.objects, e.hub, ChatOptions{Mailer: mailer, InviteURL: "http://app.test/invite"})
	err = chat.Invite(ctx, owner, roomID, "no es mail")
	expectKind(t, err, KindValidation)
	mustNoErr(t, chat.Invite(ctx, owner, roomID, "Amiga@Example.com"), "invite")
	if len(mailer.sent) != 1 || mailer.sent[0].to != "amiga@example.com" || mailer.sent[0].link != "http://app.test/invite?room_id="+roomID {
		t.Errorf("sent = %+v", mailer.sent)
	}
}

func TestTyping(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	roomID, owner, member := groupChat(t, e)

	typing, err := e.chat.Typing(ctx, owner, roomID)
	mustNoErr(t, err, "typing without indicator")
	if typing == nil || len(typing) != 0 {
		t.Errorf("typing = %v", typing)
	}

	chat := NewChatService(e.stores, e.objects, e.hub, ChatOptions{Typing: &fakeTyping{}})
	mustNoErr(t, chat.SetTyping(ctx, member, roomID, true), "set typing")
	if e.hub.count(owner, EventTyping) != 1 {
		t.Error("owner should get a typing event")
	}

	typing, err = chat.Typing(ctx, owner, roomID)
	mustNoErr(t, err, "typing")
	if len(typing) != 1 || typing[0] != member {
		t.Errorf("typing = %v", typing)
	}
	typing, err = chat.Typing(ctx, member, roomID)
	mustNoErr(t, err, "own typing")
	if len(typing) != 0 {
		t.Errorf("a user should not see themselves typing: %v", typing)
	}
}
