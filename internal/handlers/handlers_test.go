package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"trip-share-backend/internal/memstore"
	"trip-share-backend/internal/middleware"
	"trip-share-backend/internal/models"
	"trip-share-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	testCronKey   = "cron-secret"
	samplePayload = "'00123456789'@'GONZALEZ PEREZ'@'MARIA JOSE'@'F'@'30123456'@'A'@'15/03/1990'@'01/02/2020'@'27301234564'"
)

// testTokens accepts "test:<user id>" and falls back to real access tokens
type testTokens struct {
	users *services.UserService
}

func (v testTokens) ValidateAccessToken(token string) (string, error) {
	if id, ok := strings.CutPrefix(token, "test:"); ok {
		return id, nil
	}
	return v.users.ValidateAccessToken(token)
}

type testEnv struct {
	st      *memstore.Store
	objects *memstore.Objects
	hub     *services.WSHub
	router  chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := memstore.New()
	stores := services.Stores{
		Users:         st.Users,
		Trips:         st.Trips,
		TripMembers:   st.TripMembers,
		Applications:  st.Applications,
		Rooms:         st.Rooms,
		RoomMembers:   st.RoomMembers,
		Messages:      st.Messages,
		Pairs:         st.Pairs,
		History:       st.History,
		Reviews:       st.Reviews,
		Reports:       st.Reports,
		Notifications: st.Notifications,
	}
	objects := memstore.NewObjects("http://files.test")
	hub := services.NewWSHub()
	t.Cleanup(hub.Close)

	provisioner := services.NewRoomProvisioner(stores)
	history := services.NewHistoryRecorder(stores, provisioner)
	notifier := services.NewNotificationService(stores, hub, nil)
	users := services.NewUserService(stores, objects, services.UserOptions{
		JWTSecret:  "test-secret",
		ConfirmURL: "http://api.test/auth/confirm",
	})
	chat := services.NewChatService(stores, objects, hub, services.ChatOptions{})
	tokens := testTokens{users: users}

	api := &API{
		Auth:         NewAuthHandler(users, "http://app.test/confirm"),
		Trips:        NewTripHandler(services.NewTripService(stores, provisioner, history)),
		Applications: NewApplicationHandler(services.NewApplicationService(stores, provisioner, notifier), history),
		Chat:         NewChatHandler(chat),
		Social: NewSocialHandler(
			services.NewReviewService(stores),
			services.NewReportService(stores),
			notifier,
		),
		WebSocket: NewWebSocketHandler(hub, tokens, chat),
		CronKey:   testCronKey,
	}
	r := chi.NewRouter()
	api.Mount(r, middleware.AuthMiddleware(tokens))

	return &testEnv{st: st, objects: objects, hub: hub, router: r}
}

func (e *testEnv) user(t *testing.T, name string) string {
	t.Helper()
	id := uuid.New().String()
	err := e.st.Users.Create(context.Background(), &models.User{
		ID:             id,
		Email:          name + "@example.com",
		FirstName:      name,
		DocumentNumber: id,
		EmailConfirmed: true,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return id
}

type response struct {
	code int
	body map[string]any
	raw  *httptest.ResponseRecorder
}

func (e *testEnv) do(t *testing.T, req *http.Request, userID string) response {
	t.Helper()
	if userID != "" {
		req.Header.Set("Authorization", "Bearer test:"+userID)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	res := response{code: rec.Code, raw: rec}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &res.body); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", req.Method, req.URL, err, rec.Body.String())
		}
	}
	return res
}

func httpGet(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func httpPost(target string) *http.Request {
	return httptest.NewRequest(http.MethodPost, target, nil)
}

func (e *testEnv) get(t *testing.T, userID, target string) response {
	t.Helper()
	return e.do(t, httpGet(target), userID)
}

func (e *testEnv) post(t *testing.T, userID, target string, body any) response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req, userID)
}

func (e *testEnv) upload(t *testing.T, userID, target string, fields map[string]string, name, contentType, content string) response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(part, content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(t, req, userID)
}

func (r response) expect(t *testing.T, code int) response {
	t.Helper()
	if r.code != code {
		t.Fatalf("status = %d, want %d: %s", r.code, code, r.raw.Body.String())
	}
	if ok, _ := r.body["ok"].(bool); ok != (code == http.StatusOK) {
		t.Fatalf("ok = %v for status %d: %s", r.body["ok"], code, r.raw.Body.String())
	}
	return r
}

func (r response) object(t *testing.T, key string) map[string]any {
	t.Helper()
	obj, ok := r.body[key].(map[string]any)
	if !ok {
		t.Fatalf("%s is not an object: %s", key, r.raw.Body.String())
	}
	return obj
}

func (r response) list(t *testing.T, key string) []any {
	t.Helper()
	items, ok := r.body[key].([]any)
	if !ok {
		t.Fatalf("%s is not a list: %s", key, r.raw.Body.String())
	}
	return items
}

func tripBody(creatorID, name string) map[string]any {
	return map[string]any{
		"creator_id":       creatorID,
		"name":             name,
		"origin":           "Buenos Aires",
		"destination":      "Bariloche",
		"country":          "Argentina",
		"start_date":       time.Now().AddDate(0, 0, 10).Format("2006-01-02"),
		"budget_min":       "100",
		"budget_max":       500,
		"room_type":        "shared",
		"max_participants": "4",
	}
}

func (e *testEnv) trip(t *testing.T, creatorID, name string) string {
	t.Helper()
	res := e.post(t, creatorID, "/trips", tripBody(creatorID, name)).expect(t, http.StatusOK)
	return res.object(t, "trip")["id"].(string)
}
