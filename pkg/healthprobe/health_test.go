package healthprobe

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	hc := New()

	if hc == nil {
		t.Fatal("New() returned nil")
	}

	if time.Since(hc.startTime) > 1*time.Second {
		t.Errorf("start time is too old: %v", hc.startTime)
	}

	if hc.ready.Load() {
		t.Error("should not be ready by default")
	}

	if hc.Phase() != "starting" {
		t.Errorf("initial phase: got %q", hc.Phase())
	}
}

func TestHealth_AlwaysOK(t *testing.T) {
	hc := New()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	hc.Health()(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.Status != "healthy" {
		t.Errorf("status field: got %q", resp.Status)
	}
}

func TestReady_FollowsReadiness(t *testing.T) {
	hc := New()
	hc.SetPhase("forking")

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()

	hc.Ready()(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("not-ready status: got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.Phase != "forking" {
		t.Errorf("phase: got %q", resp.Phase)
	}

	hc.SetPhase("executing")
	hc.SetReady(true)

	rec = httptest.NewRecorder()
	hc.Ready()(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ready status: got %d", rec.Code)
	}
}

func TestSetPhase(t *testing.T) {
	hc := New()

	for _, phase := range []string{"forking", "seeding", "executing", "done"} {
		hc.SetPhase(phase)
		if hc.Phase() != phase {
			t.Errorf("phase: got %q, want %q", hc.Phase(), phase)
		}
	}
}
