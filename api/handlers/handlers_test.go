package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/homebase-id/odin-notify/internal/db"
	"github.com/homebase-id/odin-notify/internal/model"
	"github.com/homebase-id/odin-notify/internal/notify"
	"github.com/homebase-id/odin-notify/internal/relay"
	"github.com/homebase-id/odin-notify/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRepo(t *testing.T) *repository.NotificationRepository {
	t.Helper()
	testDB, err := db.NewTestDB()
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { testDB.Close() })
	return repository.NewNotificationRepository(testDB)
}

func seed(t *testing.T, repo *repository.NotificationRepository, transport string, typ model.NotificationType, at time.Time) *model.Entry {
	t.Helper()
	e := &model.Entry{
		Transport:        transport,
		NotificationType: typ,
		Payload:          json.RawMessage(`{"notificationType":"` + string(typ) + `"}`),
		ReceivedAt:       at,
	}
	if err := repo.Create(context.Background(), e); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return e
}

func newRouter(register func(rg *gin.RouterGroup)) *gin.Engine {
	r := gin.New()
	register(r.Group("/api"))
	return r
}

func doGet(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestListNotifications(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	seed(t, repo, "local", model.NotificationTypeFileAdded, base)
	seed(t, repo, "peer", model.NotificationTypeFileAdded, base.Add(time.Second))
	newest := seed(t, repo, "local", model.NotificationTypeFileDeleted, base.Add(2*time.Second))

	r := newRouter(NewNotificationHandler(repo).RegisterRoutes)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 3},
		{"by transport", "?transport=local", 2},
		{"by type", "?type=fileAdded", 2},
		{"both", "?transport=peer&type=fileAdded", 1},
		{"limit", "?limit=1", 1},
		{"no match", "?type=fileModified", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doGet(r, "/api/notifications"+tt.query)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			var resp ListResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid body: %v", err)
			}
			if resp.Count != tt.want || len(resp.Notifications) != tt.want {
				t.Errorf("expected %d notifications, got %d", tt.want, resp.Count)
			}
		})
	}

	w := doGet(r, "/api/notifications")
	var resp ListResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Notifications) == 0 || resp.Notifications[0].ID != newest.ID {
		t.Error("expected newest entry first")
	}
	if !strings.Contains(w.Body.String(), `"notifications":[`) {
		t.Errorf("expected a JSON array, got %s", w.Body.String())
	}
}

func TestListNotificationsValidation(t *testing.T) {
	r := newRouter(NewNotificationHandler(newTestRepo(t)).RegisterRoutes)

	for _, query := range []string{"?limit=abc", "?limit=-1", "?type=nonsense"} {
		w := doGet(r, "/api/notifications"+query)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", query, w.Code)
			continue
		}
		var resp ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Error.Code != "VALIDATION_ERROR" {
			t.Errorf("%s: unexpected error code %q", query, resp.Error.Code)
		}
	}
}

func TestGetNotification(t *testing.T) {
	repo := newTestRepo(t)
	e := seed(t, repo, "local", model.NotificationTypeInboxItemReceived, time.Now().UTC())
	r := newRouter(NewNotificationHandler(repo).RegisterRoutes)

	w := doGet(r, "/api/notifications/"+e.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got model.Entry
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if got.ID != e.ID || got.NotificationType != model.NotificationTypeInboxItemReceived {
		t.Errorf("unexpected entry %+v", got)
	}

	w = doGet(r, "/api/notifications/does-not-exist")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "NOTIFICATION_NOT_FOUND" {
		t.Errorf("unexpected error code %q", resp.Error.Code)
	}
}

type staticStatus notify.Status

func (s staticStatus) Status() notify.Status { return notify.Status(s) }

func TestStatus(t *testing.T) {
	r := newRouter(NewStatusHandler(
		staticStatus{Transport: "local", State: model.StateLive, ConnectionID: 3, Subscribers: 2},
		staticStatus{Transport: "peer", State: model.StateReconnecting, Attempt: 4},
	).RegisterRoutes)

	w := doGet(r, "/api/status")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if len(resp.Transports) != 2 {
		t.Fatalf("expected 2 transports, got %d", len(resp.Transports))
	}
	if resp.Transports[0].State != model.StateLive || resp.Transports[1].Attempt != 4 {
		t.Errorf("unexpected status %+v", resp.Transports)
	}
}

func TestStream(t *testing.T) {
	hub := relay.NewHub()
	defer hub.Close()
	r := newRouter(NewStreamHandler(relay.NewHandler(hub, nil)).RegisterRoutes)
	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatal("stream client was not registered")
	}

	hub.Subscriber("local").OnDisconnect()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg relay.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msg.Type != relay.MessageTypeStatus || msg.State != relay.StatusDisconnected {
		t.Errorf("unexpected message %+v", msg)
	}

	// Plain HTTP is refused by the upgrader.
	if w := doGet(r, "/api/stream"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-upgrade request, got %d", w.Code)
	}
}
