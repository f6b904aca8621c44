package pihole

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"gitlab.bluewillows.net/root/netwarden/pkg/upstream"
)

// newTestServer returns a server that answers /api/auth with a valid session
// and delegates everything else to handler.
func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		var body struct {
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"session": map[string]any{"valid": false, "message": "password incorrect"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"session": map[string]any{"valid": true, "sid": "test-sid", "validity": 300},
		})
	})
	mux.HandleFunc("/", handler)
	return httptest.NewServer(mux)
}

func TestAuthenticate(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	// Second call must reuse the session, not re-authenticate.
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("re-authenticate: %v", err)
	}
}

func TestAuthenticateRejected(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	defer srv.Close()

	c := NewClient(srv.URL, "wrong")
	err := c.Authenticate(context.Background())
	if !errors.Is(err, upstream.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestAuthenticateNoPassword(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "")
	err := c.Authenticate(context.Background())
	if !errors.Is(err, upstream.ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestAuthenticateUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "secret",
		WithHTTPClient(&http.Client{Timeout: 200 * time.Millisecond}))
	err := c.Authenticate(context.Background())
	if !errors.Is(err, upstream.ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity, got %v", err)
	}
}

func TestDomainStatus(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		body        any
		wantEnabled bool
		wantPresent bool
	}{
		{
			name:       "present and enabled",
			statusCode: http.StatusOK,
			body: map[string]any{"domains": []map[string]any{
				{"domain": "youtube.com", "enabled": true},
			}},
			wantEnabled: true,
			wantPresent: true,
		},
		{
			name:       "present but disabled",
			statusCode: http.StatusOK,
			body: map[string]any{"domains": []map[string]any{
				{"domain": "youtube.com", "enabled": false},
			}},
			wantEnabled: false,
			wantPresent: true,
		},
		{
			name:        "absent",
			statusCode:  http.StatusNotFound,
			body:        map[string]any{"domains": []map[string]any{}},
			wantEnabled: false,
			wantPresent: false,
		},
		{
			name:        "empty list",
			statusCode:  http.StatusOK,
			body:        map[string]any{"domains": []map[string]any{}},
			wantEnabled: false,
			wantPresent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("X-FTL-SID") != "test-sid" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				w.WriteHeader(tt.statusCode)
				json.NewEncoder(w).Encode(tt.body)
			})
			defer srv.Close()

			c := NewClient(srv.URL, "secret")
			enabled, present, err := c.DomainStatus(context.Background(), ListDeny, "youtube.com")
			if err != nil {
				t.Fatalf("DomainStatus: %v", err)
			}
			if enabled != tt.wantEnabled || present != tt.wantPresent {
				t.Errorf("DomainStatus = (%v, %v), want (%v, %v)",
					enabled, present, tt.wantEnabled, tt.wantPresent)
			}
		})
	}
}

func TestAddAndRemoveDomain(t *testing.T) {
	var gotMethod, gotPath string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"domains": []map[string]any{}})
	})
	defer srv.Close()

	c := NewClient(srv.URL, "secret")

	if err := c.AddDomain(context.Background(), ListDeny, "youtube.com"); err != nil {
		t.Fatalf("AddDomain: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/domains/deny/exact" {
		t.Errorf("AddDomain hit %s %s", gotMethod, gotPath)
	}

	if err := c.RemoveDomain(context.Background(), ListAllow, "edu.example.com"); err != nil {
		t.Fatalf("RemoveDomain: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/domains/allow/exact/edu.example.com" {
		t.Errorf("RemoveDomain hit %s %s", gotMethod, gotPath)
	}
}

func TestRemoveAbsentDomainIsNoop(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	if err := c.RemoveDomain(context.Background(), ListDeny, "gone.example.com"); err != nil {
		t.Fatalf("removing an absent domain must succeed, got %v", err)
	}
}

func TestBlockingStatus(t *testing.T) {
	tests := []struct {
		name     string
		blocking string
		want     bool
	}{
		{name: "enabled", blocking: "enabled", want: true},
		{name: "disabled", blocking: "disabled", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"blocking": tt.blocking})
			})
			defer srv.Close()

			c := NewClient(srv.URL, "secret")
			got, err := c.BlockingStatus(context.Background())
			if err != nil {
				t.Fatalf("BlockingStatus: %v", err)
			}
			if got != tt.want {
				t.Errorf("BlockingStatus = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetBlockingForwardsTimer(t *testing.T) {
	var gotPayload struct {
		Blocking bool     `json:"blocking"`
		Timer    *float64 `json:"timer"`
	}
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"blocking": "disabled", "timer": 60})
	})
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	enabled, err := c.SetBlocking(context.Background(), false, time.Minute)
	if err != nil {
		t.Fatalf("SetBlocking: %v", err)
	}
	if enabled {
		t.Error("expected acknowledged state disabled")
	}
	if gotPayload.Blocking {
		t.Error("payload blocking = true, want false")
	}
	if gotPayload.Timer == nil || *gotPayload.Timer != 60 {
		t.Errorf("payload timer = %v, want 60", gotPayload.Timer)
	}
}

func TestSetBlockingOmitsZeroTimer(t *testing.T) {
	var raw map[string]any
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"blocking": "enabled"})
	})
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	if _, err := c.SetBlocking(context.Background(), true, 0); err != nil {
		t.Fatalf("SetBlocking: %v", err)
	}
	if raw["timer"] != nil {
		t.Errorf("timer = %v, want null", raw["timer"])
	}
}

func TestSessionExpiryTriggersReauth(t *testing.T) {
	var authCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth", func(w http.ResponseWriter, r *http.Request) {
		authCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"session": map[string]any{"valid": true, "sid": "sid2", "validity": 300},
		})
	})
	first := true
	mux.HandleFunc("/api/dns/blocking", func(w http.ResponseWriter, r *http.Request) {
		if first {
			first = false
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"blocking": "enabled"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "secret")

	// First call hits the expired-session path and fails.
	if _, err := c.BlockingStatus(context.Background()); !errors.Is(err, upstream.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication on expired session, got %v", err)
	}

	// The cleared session forces a fresh login on the next call.
	if _, err := c.BlockingStatus(context.Background()); err != nil {
		t.Fatalf("retry after re-auth: %v", err)
	}
	if authCalls.Load() != 2 {
		t.Errorf("auth calls = %d, want 2", authCalls.Load())
	}
}
