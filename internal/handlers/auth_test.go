package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func registerBody() map[string]any {
	return map[string]any{
		"email":            "Maria@Example.com",
		"password":         "secreto123",
		"first_name":       "María",
		"last_name":        "González",
		"document_number":  "30.123.456",
		"sex":              "F",
		"birth_date":       "1990-03-15",
		"document_payload": samplePayload,
	}
}

func TestRegisterConfirmLogin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	res := e.post(t, "", "/auth/register", registerBody()).expect(t, http.StatusOK)
	if res.body["id"] == "" || res.body["email"] != "maria@example.com" || res.body["document_number"] != "30123456" {
		t.Errorf("register response = %v", res.body)
	}

	login := map[string]any{"email": "maria@example.com", "password": "secreto123"}
	res = e.post(t, "", "/auth/login", login).expect(t, http.StatusBadRequest)
	if !strings.Contains(res.body["error"].(string), "not confirmed") {
		t.Errorf("error = %v", res.body["error"])
	}

	user, err := e.st.Users.GetByEmail(ctx, "maria@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	res = e.get(t, "", "/auth/confirm?token="+user.ConfirmationToken)
	if res.code != http.StatusFound {
		t.Fatalf("confirm status = %d", res.code)
	}
	if loc := res.raw.Header().Get("Location"); loc != "http://app.test/confirm?status=success" {
		t.Errorf("redirect = %s", loc)
	}

	res = e.post(t, "", "/auth/login", login).expect(t, http.StatusOK)
	access, _ := res.body["access"].(string)
	refresh, _ := res.body["refresh"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("tokens = %v", res.body)
	}

	req := httpGet("/profile/user")
	req.Header.Set("Authorization", "Bearer "+access)
	res = e.do(t, req, "").expect(t, http.StatusOK)
	if res.object(t, "user")["id"] != user.ID {
		t.Errorf("profile = %v", res.body)
	}

	e.post(t, "", "/auth/refresh", map[string]any{"refresh": access}).expect(t, http.StatusForbidden)
	res = e.post(t, "", "/auth/refresh", map[string]any{"refresh": refresh}).expect(t, http.StatusOK)
	if res.body["access"] == "" {
		t.Errorf("refresh = %v", res.body)
	}
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(body map[string]any)
		field string
	}{
		{"missing email", func(b map[string]any) { delete(b, "email") }, "email"},
		{"bad email", func(b map[string]any) { b["email"] = "nope" }, "email"},
		{"short password", func(b map[string]any) { b["password"] = "abc" }, "password"},
		{"missing birth date", func(b map[string]any) { b["birth_date"] = "" }, "birth_date"},
		{"document mismatch", func(b map[string]any) { b["document_number"] = "30123457" }, "document_number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			body := registerBody()
			tt.edit(body)
			res := e.post(t, "", "/auth/register", body).expect(t, http.StatusBadRequest)
			if res.body["field"] != tt.field {
				t.Errorf("field = %v, want %s", res.body["field"], tt.field)
			}
		})
	}
}

func TestConfirmWithBadToken(t *testing.T) {
	e := newTestEnv(t)
	res := e.get(t, "", "/auth/confirm?token=nope")
	if res.code != http.StatusFound || !strings.Contains(res.raw.Header().Get("Location"), "status=error") {
		t.Errorf("confirm = %d %s", res.code, res.raw.Header().Get("Location"))
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	e := newTestEnv(t)
	e.get(t, "", "/trips").expect(t, http.StatusUnauthorized)

	req := httpGet("/trips")
	req.Header.Set("Authorization", "Bearer garbage")
	e.do(t, req, "").expect(t, http.StatusUnauthorized)
}

func TestUpsertProfileAndAvatar(t *testing.T) {
	e := newTestEnv(t)
	ana := e.user(t, "ana")
	bob := e.user(t, "bob")

	e.post(t, ana, "/auth/upsert_profile", map[string]any{"user_id": bob, "first_name": "X"}).
		expect(t, http.StatusForbidden)
	res := e.post(t, ana, "/auth/upsert_profile", map[string]any{"user_id": ana, "last_name": "Pérez"}).
		expect(t, http.StatusOK)
	if res.object(t, "user")["last_name"] != "Pérez" {
		t.Errorf("profile = %v", res.body)
	}

	e.upload(t, ana, "/profile/avatar", nil, "cv.pdf", "application/pdf", "pdf").expect(t, http.StatusBadRequest)
	res = e.upload(t, ana, "/profile/avatar", nil, "me.png", "image/png", "png").expect(t, http.StatusOK)
	if url, _ := res.body["avatar_url"].(string); !strings.HasPrefix(url, "http://files.test/avatars/"+ana+"/") {
		t.Errorf("avatar url = %v", res.body["avatar_url"])
	}

	e.post(t, ana, "/profile/push-token", map[string]any{"token": "device"}).expect(t, http.StatusOK)
	u, _ := e.st.Users.GetByID(context.Background(), ana)
	if u.PushToken == nil || *u.PushToken != "device" {
		t.Errorf("push token = %v", u.PushToken)
	}
}
