package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newAPIStub(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if name := r.URL.Query().Get("name"); name != "" {
			if name != "a" {
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown service"})
				return
			}
			_ = json.NewEncoder(w).Encode(ServiceStatus{Name: "a", State: "running", PID: 42})
			return
		}
		_ = json.NewEncoder(w).Encode([]ServiceStatus{
			{Name: "a", State: "running", PID: 42},
			{Name: "b", State: "stopped"},
		})
	})
	mux.HandleFunc("/api/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewEncoder(w).Encode(ServiceStatus{Name: r.URL.Query().Get("name"), State: "running"})
	})
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]Event{{Service: "a", Kind: "spawn"}})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, New(Config{BaseURL: ts.URL + "/api"})
}

func TestStatusAll(t *testing.T) {
	_, c := newAPIStub(t)
	sts, err := c.Status(context.Background(), "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(sts) != 2 || sts[0].Name != "a" || sts[0].PID != 42 {
		t.Fatalf("statuses: %+v", sts)
	}
}

func TestStatusOne(t *testing.T) {
	_, c := newAPIStub(t)
	sts, err := c.Status(context.Background(), "a")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(sts) != 1 || sts[0].State != "running" {
		t.Fatalf("statuses: %+v", sts)
	}
}

func TestServerErrorIsSurfaced(t *testing.T) {
	_, c := newAPIStub(t)
	_, err := c.Status(context.Background(), "nope")
	if err == nil || !strings.Contains(err.Error(), "unknown service") {
		t.Fatalf("want decoded server error, got %v", err)
	}
}

func TestStartLifecycle(t *testing.T) {
	_, c := newAPIStub(t)
	st, err := c.Start(context.Background(), "a")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if st.Name != "a" || st.State != "running" {
		t.Fatalf("status: %+v", st)
	}
}

func TestEvents(t *testing.T) {
	_, c := newAPIStub(t)
	evs, err := c.Events(context.Background(), "a", 5)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evs) != 1 || evs[0].Kind != "spawn" {
		t.Fatalf("events: %+v", evs)
	}
}

func TestIsReachable(t *testing.T) {
	ts, c := newAPIStub(t)
	if !c.IsReachable(context.Background()) {
		t.Fatalf("stub must be reachable")
	}
	ts.Close()
	if c.IsReachable(context.Background()) {
		t.Fatalf("closed server must be unreachable")
	}
}
