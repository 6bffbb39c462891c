package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/homebase-id/odin-notify/internal/identity"
)

func TestLocalAuthOwner(t *testing.T) {
	client, err := identity.NewClient(&identity.Options{
		Host:         "frodo.dotyou.cloud",
		APIType:      identity.APITypeOwner,
		Token:        "owner-token",
		SharedSecret: testSecret,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	ep, err := NewLocalAuth(client).PreConnect(context.Background())
	if err != nil {
		t.Fatalf("PreConnect failed: %v", err)
	}
	if ep.URL != "wss://frodo.dotyou.cloud/api/owner/v1/notify/ws" {
		t.Errorf("unexpected url %s", ep.URL)
	}
	if ep.Token != "" {
		t.Error("local transport must not wrap frames")
	}
	if ep.Jar == nil {
		t.Error("expected shared cookie jar")
	}
}

func TestLocalAuthAppsPreauth(t *testing.T) {
	var preauths int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/apps/v1/notify/preauth" && r.Method == http.MethodPost {
			preauths++
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := identity.NewClient(&identity.Options{
		Host:         strings.TrimPrefix(srv.URL, "http://"),
		APIType:      identity.APITypeApps,
		SharedSecret: testSecret,
		Insecure:     true,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	ep, err := NewLocalAuth(client).PreConnect(context.Background())
	if err != nil {
		t.Fatalf("PreConnect failed: %v", err)
	}
	if preauths != 1 {
		t.Errorf("expected 1 preauth call, got %d", preauths)
	}
	if !strings.HasPrefix(ep.URL, "ws://") || !strings.HasSuffix(ep.URL, "/api/apps/v1/notify/ws") {
		t.Errorf("unexpected url %s", ep.URL)
	}
}

func TestPeerAuthTokenExchange(t *testing.T) {
	peerSecret := []byte("fedcba9876543210fedcba9876543210")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/owner/v1/notify/peer/token" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			Identity string `json:"identity"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Identity != "sam.dotyou.cloud" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"authenticationToken64": "dG9rZW4=",
			"sharedSecret":          base64.StdEncoding.EncodeToString(peerSecret),
		})
	}))
	defer srv.Close()

	client, err := identity.NewClient(&identity.Options{
		Host:         strings.TrimPrefix(srv.URL, "http://"),
		APIType:      identity.APITypeOwner,
		SharedSecret: testSecret,
		Insecure:     true,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	ep, err := NewPeerAuth(client, "sam.dotyou.cloud").PreConnect(context.Background())
	if err != nil {
		t.Fatalf("PreConnect failed: %v", err)
	}
	if ep.URL != "ws://sam.dotyou.cloud/api/guest/v1/notify/peer/ws" {
		t.Errorf("unexpected url %s", ep.URL)
	}
	if ep.Token != "dG9rZW4=" || string(ep.SharedSecret) != string(peerSecret) {
		t.Errorf("unexpected endpoint credentials %q %q", ep.Token, ep.SharedSecret)
	}

	if _, err := NewPeerAuth(client, "unknown.example").PreConnect(context.Background()); err == nil {
		t.Error("expected failed exchange to fail PreConnect")
	}
}
