package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gitlab.bluewillows.net/root/netwarden/internal/engine"
	"gitlab.bluewillows.net/root/netwarden/internal/status"
	"gitlab.bluewillows.net/root/netwarden/pkg/upstream"
)

type fakeEngine struct {
	defs     map[string]engine.BlockDefinition
	statuses map[string]status.Status
	getErr   error

	applied  []string
	applyErr error

	global         status.Status
	globalErr      error
	setGlobalTimer time.Duration
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		defs: map[string]engine.BlockDefinition{
			"youtube":      {Name: "youtube", Category: engine.CategoryDomainBlock, Domains: []string{"youtube.com"}},
			"gaming":       {Name: "gaming", Category: engine.CategoryFirewallRule, RuleName: "Block_Gaming"},
			"kids_devices": {Name: "kids_devices", Category: engine.CategoryDeviceGroup, MACs: []string{"aa:bb:cc:dd:ee:ff"}},
		},
		statuses: map[string]status.Status{
			"youtube": status.False,
			"gaming":  status.True,
		},
		global: status.True,
	}
}

func (f *fakeEngine) Get(_ context.Context, name string) (status.Status, error) {
	if f.getErr != nil {
		return status.Unknown, f.getErr
	}
	if _, ok := f.defs[name]; !ok {
		return status.Status(status.Sentinel), nil
	}
	return f.statuses[name], nil
}

func (f *fakeEngine) Apply(_ context.Context, name string, enable bool) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	if _, ok := f.defs[name]; !ok {
		return fmt.Errorf("block %q: %w", name, upstream.ErrUnknownResource)
	}
	f.applied = append(f.applied, fmt.Sprintf("%s:%v", name, enable))
	return nil
}

func (f *fakeEngine) GlobalStatus(_ context.Context) (status.Status, error) {
	return f.global, f.globalErr
}

func (f *fakeEngine) SetGlobal(_ context.Context, enable bool, timer time.Duration) (status.Status, error) {
	if f.globalErr != nil {
		return status.Unknown, f.globalErr
	}
	f.global = status.FromBool(enable)
	f.setGlobalTimer = timer
	return f.global, nil
}

func (f *fakeEngine) Lookup(name string) (engine.BlockDefinition, bool) {
	d, ok := f.defs[name]
	return d, ok
}

func (f *fakeEngine) LookupRule(name string) (engine.BlockDefinition, bool) {
	for _, d := range f.defs {
		if d.Category != engine.CategoryFirewallRule {
			continue
		}
		if d.RuleName == name || d.Name == name {
			return d, true
		}
	}
	return engine.BlockDefinition{}, false
}

func doRequest(t *testing.T, eng Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	srv := NewServer(eng, "127.0.0.1:0")
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return body.Status
}

func TestGlobalStatusEndpoint(t *testing.T) {
	rec := doRequest(t, newFakeEngine(), http.MethodGet, "/alldns/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeStatus(t, rec); got != "true" {
		t.Errorf("status = %q, want %q", got, "true")
	}
}

func TestGlobalChangeEndpoint(t *testing.T) {
	eng := newFakeEngine()

	rec := doRequest(t, eng, http.MethodPost, "/alldns/disable?timer=300")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := decodeStatus(t, rec); got != "false" {
		t.Errorf("status = %q, want %q", got, "false")
	}
	if eng.setGlobalTimer != 5*time.Minute {
		t.Errorf("timer = %v, want 5m", eng.setGlobalTimer)
	}
}

func TestGlobalChangeBadDirection(t *testing.T) {
	rec := doRequest(t, newFakeEngine(), http.MethodPost, "/alldns/sideways")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGlobalChangeBadTimer(t *testing.T) {
	rec := doRequest(t, newFakeEngine(), http.MethodPost, "/alldns/enable?timer=soon")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestBlockStatusEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus string
	}{
		{name: "configured", path: "/pihole/status/youtube", wantStatus: "false"},
		{name: "unconfigured gets sentinel", path: "/pihole/status/mystery", wantStatus: "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, newFakeEngine(), http.MethodGet, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if got := decodeStatus(t, rec); got != tt.wantStatus {
				t.Errorf("status = %q, want %q", got, tt.wantStatus)
			}
		})
	}
}

func TestBlockStatusUpstreamFailure(t *testing.T) {
	eng := newFakeEngine()
	eng.getErr = upstream.ErrConnectivity

	rec := doRequest(t, eng, http.MethodGet, "/pihole/status/youtube")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestBlockChangeEndpoint(t *testing.T) {
	eng := newFakeEngine()

	rec := doRequest(t, eng, http.MethodPost, "/pihole/enable/youtube")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := decodeStatus(t, rec); got != "ok" {
		t.Errorf("status = %q, want %q", got, "ok")
	}
	if len(eng.applied) != 1 || eng.applied[0] != "youtube:true" {
		t.Errorf("applied = %v, want [youtube:true]", eng.applied)
	}
}

func TestBlockChangeUnknownName(t *testing.T) {
	rec := doRequest(t, newFakeEngine(), http.MethodPost, "/pihole/enable/mystery")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestBlockChangeAuthFailure(t *testing.T) {
	eng := newFakeEngine()
	eng.applyErr = upstream.ErrAuthentication

	rec := doRequest(t, eng, http.MethodPost, "/pihole/enable/youtube")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRuleStatusEndpoint(t *testing.T) {
	rec := doRequest(t, newFakeEngine(), http.MethodGet, "/ubiquiti/status_rule/Block_Gaming")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	if !body["status"] {
		t.Error("status = false, want true")
	}
}

func TestRuleStatusUnknownRule(t *testing.T) {
	rec := doRequest(t, newFakeEngine(), http.MethodGet, "/ubiquiti/status_rule/No_Such_Rule")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRuleChangeEndpoint(t *testing.T) {
	eng := newFakeEngine()

	rec := doRequest(t, eng, http.MethodPost, "/ubiquiti/change_rule/disabled/Block_Gaming")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := decodeStatus(t, rec); got != "false" {
		t.Errorf("status = %q, want %q", got, "false")
	}
	if len(eng.applied) != 1 || eng.applied[0] != "gaming:false" {
		t.Errorf("applied = %v, want [gaming:false]", eng.applied)
	}
}

func TestRuleChangeBadDirection(t *testing.T) {
	rec := doRequest(t, newFakeEngine(), http.MethodPost, "/ubiquiti/change_rule/invalid/Block_Gaming")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeviceChangeEndpoint(t *testing.T) {
	eng := newFakeEngine()

	rec := doRequest(t, eng, http.MethodPost, "/ubiquiti/change_device/offline/kids_devices")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := decodeStatus(t, rec); got != "offline" {
		t.Errorf("status = %q, want %q", got, "offline")
	}
	if len(eng.applied) != 1 || eng.applied[0] != "kids_devices:true" {
		t.Errorf("applied = %v, want [kids_devices:true]", eng.applied)
	}
}

func TestDeviceChangeOnline(t *testing.T) {
	eng := newFakeEngine()

	rec := doRequest(t, eng, http.MethodPost, "/ubiquiti/change_device/online/kids_devices")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeStatus(t, rec); got != "online" {
		t.Errorf("status = %q, want %q", got, "online")
	}
}

func TestDeviceChangeBadState(t *testing.T) {
	rec := doRequest(t, newFakeEngine(), http.MethodPost, "/ubiquiti/change_device/asleep/kids_devices")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeviceChangeWrongCategory(t *testing.T) {
	rec := doRequest(t, newFakeEngine(), http.MethodPost, "/ubiquiti/change_device/offline/youtube")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
