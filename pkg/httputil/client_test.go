package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(nil)

	if client.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", client.Timeout, DefaultTimeout)
	}
	if client.Transport == nil {
		t.Fatal("transport must be set")
	}
}

func TestNewClientCustomTimeout(t *testing.T) {
	client := NewClient(&ClientConfig{Timeout: 5 * time.Second})

	if client.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", client.Timeout)
	}
}

func TestNewClientZeroTimeoutUsesDefault(t *testing.T) {
	client := NewClient(&ClientConfig{Timeout: 0})

	if client.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want default %v", client.Timeout, DefaultTimeout)
	}
}

func TestUserAgentHeader(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      string
	}{
		{name: "default user agent", userAgent: "", want: DefaultUserAgent},
		{name: "custom user agent", userAgent: "custom/2.0", want: "custom/2.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("User-Agent")
			}))
			defer srv.Close()

			client := NewClient(&ClientConfig{UserAgent: tt.userAgent})
			resp, err := client.Get(srv.URL)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()

			if got != tt.want {
				t.Errorf("User-Agent = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExistingUserAgentPreserved(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client := NewClient(nil)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("User-Agent", "caller/1.0")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got != "caller/1.0" {
		t.Errorf("User-Agent = %q, want caller/1.0", got)
	}
}

func TestTLSSkipVerify(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// Without skip-verify the self-signed cert must be rejected.
	strict := NewClient(nil)
	if _, err := strict.Get(srv.URL); err == nil {
		t.Error("expected TLS verification failure against self-signed cert")
	}

	lax := NewClient(&ClientConfig{TLSSkipVerify: true})
	resp, err := lax.Get(srv.URL)
	if err != nil {
		t.Fatalf("request with TLSSkipVerify failed: %v", err)
	}
	resp.Body.Close()
}

func TestDefaultClient(t *testing.T) {
	client := DefaultClient()
	if client.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", client.Timeout, DefaultTimeout)
	}
}
