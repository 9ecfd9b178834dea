package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ostrenko/confab/internal/adapters/signal"
	"github.com/ostrenko/confab/internal/app"
	"github.com/ostrenko/confab/internal/chat"
	"github.com/ostrenko/confab/internal/config"
	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/meeting"
	"github.com/ostrenko/confab/internal/store/memory"
)

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Mode:       "release",
		JWTSecret:  "test-secret",
		PublicBase: "http://localhost:5173",
	}
	st := memory.New()

	orch := &app.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:   app.DropPolicy{},
	}
	events := &signal.Events{Orch: orch}

	// Token validation inside the middleware runs against the wall
	// clock, so the test clock cannot be frozen here.
	now := time.Now
	meetings := meeting.NewService(st, st, nil, events, nil, cfg.PublicBase, now)
	chatSvc := chat.NewService(st, events, now)

	sigCtl := &signal.Controller{Orch: orch, Meetings: meetings, Chat: chatSvc, Users: st}
	h := NewHandlers(cfg, meetings, chatSvc, st, sigCtl)
	h.now = now
	return SetupRouter(context.Background(), h)
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	fields := map[string]json.RawMessage{}
	_ = json.Unmarshal(w.Body.Bytes(), &fields)
	return w, fields
}

func registerUser(t *testing.T, r *gin.Engine, username, email string) (domain.User, string) {
	t.Helper()
	w, _ := doJSON(t, r, "POST", "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d (%s)", email, w.Code, w.Body)
	}
	var res struct {
		User  domain.User `json:"user"`
		Token string      `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	return res.User, res.Token
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	r := newTestServer(t)
	_, token := registerUser(t, r, "alice", "alice@example.com")
	if token == "" {
		t.Fatalf("register must hand out a token")
	}

	w, _ := doJSON(t, r, "POST", "/api/auth/register", "", map[string]string{
		"username": "impostor", "email": "ALICE@example.com",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate email: expected 409, got %d", w.Code)
	}

	w, _ = doJSON(t, r, "POST", "/api/auth/login", "", map[string]string{"email": "alice@example.com"})
	if w.Code != http.StatusOK {
		t.Errorf("login: expected 200, got %d", w.Code)
	}
	w, _ = doJSON(t, r, "POST", "/api/auth/login", "", map[string]string{"email": "nobody@example.com"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unknown login: expected 401, got %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()

	r := newTestServer(t)
	w, _ := doJSON(t, r, "GET", "/api/meetings", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", w.Code)
	}
	w, _ = doJSON(t, r, "GET", "/api/meetings", "garbage-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a bad token, got %d", w.Code)
	}
}

func TestStartAndGetMeeting(t *testing.T) {
	t.Parallel()

	r := newTestServer(t)
	_, hostToken := registerUser(t, r, "host", "host@example.com")
	_, strangerToken := registerUser(t, r, "stranger", "stranger@example.com")

	w, _ := doJSON(t, r, "POST", "/api/meetings/start", hostToken, map[string]string{"title": "Demo"})
	if w.Code != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d (%s)", w.Code, w.Body)
	}
	var res meeting.StartResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}

	w, _ = doJSON(t, r, "GET", "/api/meetings/"+string(res.MeetingID), hostToken, nil)
	if w.Code != http.StatusOK {
		t.Errorf("host get: expected 200, got %d", w.Code)
	}
	w, _ = doJSON(t, r, "GET", "/api/meetings/"+string(res.MeetingID), strangerToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("stranger get: expected 403, got %d", w.Code)
	}

	// Joining through the link makes the meeting visible.
	w, _ = doJSON(t, r, "POST", "/api/meetings/"+string(res.MeetingID)+"/join", strangerToken, nil)
	if w.Code != http.StatusOK {
		t.Errorf("join: expected 200, got %d", w.Code)
	}
	w, _ = doJSON(t, r, "GET", "/api/meetings/"+string(res.MeetingID), strangerToken, nil)
	if w.Code != http.StatusOK {
		t.Errorf("joined get: expected 200, got %d", w.Code)
	}
}

func TestScheduleRejectsUnknownEmails(t *testing.T) {
	t.Parallel()

	r := newTestServer(t)
	_, hostToken := registerUser(t, r, "host", "host@example.com")
	registerUser(t, r, "alice", "alice@example.com")

	w, fields := doJSON(t, r, "POST", "/api/meetings/schedule", hostToken, map[string]any{
		"title":        "Planning",
		"startsAt":     time.Now().Add(48 * time.Hour),
		"participants": []string{"alice@example.com", "ghost@x.com"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body)
	}
	var emails []string
	if err := json.Unmarshal(fields["emails"], &emails); err != nil {
		t.Fatalf("response must list the offending emails: %s", w.Body)
	}
	if len(emails) != 1 || emails[0] != "ghost@x.com" {
		t.Errorf("expected the unknown address, got %v", emails)
	}
}

func TestEndMeeting_HostOnly(t *testing.T) {
	t.Parallel()

	r := newTestServer(t)
	_, hostToken := registerUser(t, r, "host", "host@example.com")
	_, guestToken := registerUser(t, r, "guest", "guest@example.com")

	w, _ := doJSON(t, r, "POST", "/api/meetings/start", hostToken, map[string]string{"title": "Demo"})
	var res meeting.StartResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	id := string(res.MeetingID)

	doJSON(t, r, "POST", "/api/meetings/"+id+"/join", guestToken, nil)

	w, _ = doJSON(t, r, "POST", "/api/meetings/"+id+"/end", guestToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("guest end: expected 403, got %d", w.Code)
	}
	w, _ = doJSON(t, r, "POST", "/api/meetings/"+id+"/end", hostToken, nil)
	if w.Code != http.StatusOK {
		t.Errorf("host end: expected 200, got %d (%s)", w.Code, w.Body)
	}
}

func TestDeleteMeeting_CreatorOnly(t *testing.T) {
	t.Parallel()

	r := newTestServer(t)
	_, hostToken := registerUser(t, r, "host", "host@example.com")
	_, guestToken := registerUser(t, r, "guest", "guest@example.com")

	w, _ := doJSON(t, r, "POST", "/api/meetings/start", hostToken, map[string]string{"title": "Demo"})
	var res meeting.StartResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	id := string(res.MeetingID)
	doJSON(t, r, "POST", "/api/meetings/"+id+"/join", guestToken, nil)

	w, _ = doJSON(t, r, "DELETE", "/api/meetings/"+id, guestToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("guest delete: expected 403, got %d", w.Code)
	}
	w, _ = doJSON(t, r, "DELETE", "/api/meetings/"+id, hostToken, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("creator delete: expected 204, got %d", w.Code)
	}
	w, _ = doJSON(t, r, "GET", "/api/meetings/"+id, hostToken, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted meeting: expected 404, got %d", w.Code)
	}
}

func TestUpdateMe(t *testing.T) {
	t.Parallel()

	r := newTestServer(t)
	_, token := registerUser(t, r, "alice", "alice@example.com")

	off := false
	w, _ := doJSON(t, r, "PUT", "/api/users/me", token, map[string]any{"emailNotifications": &off})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body)
	}
	var u domain.User
	_ = json.Unmarshal(w.Body.Bytes(), &u)
	if u.EmailNotifications {
		t.Errorf("opt-out not applied")
	}
}

func TestNotificationsEndpoints(t *testing.T) {
	t.Parallel()

	r := newTestServer(t)
	_, token := registerUser(t, r, "alice", "alice@example.com")

	w, _ := doJSON(t, r, "GET", "/api/notifications", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	w, _ = doJSON(t, r, "POST", "/api/notifications/nope/read", token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("foreign mark-read: expected 404, got %d", w.Code)
	}
}

func TestICEConfig(t *testing.T) {
	t.Parallel()

	r := newTestServer(t)
	_, token := registerUser(t, r, "alice", "alice@example.com")
	w, fields := doJSON(t, r, "GET", "/api/ice", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if _, ok := fields["stunServers"]; !ok {
		t.Errorf("expected stunServers in %s", w.Body)
	}
}
