package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"odas-monitor/internal/evaluation"
	"odas-monitor/internal/feed"
	"odas-monitor/internal/storage"
)

type stubStatus struct {
	tickStatus string
	health     string
}

func (s stubStatus) TickStatus() string { return s.tickStatus }
func (s stubStatus) Health() string     { return s.health }

func newTestServer(t *testing.T) (*httptest.Server, *storage.MemoryStore, *feed.Watcher) {
	t.Helper()
	store := storage.NewMemoryStore()
	watcher := feed.NewWatcher(store, feed.Options{PollInterval: time.Second, RecentLimit: 10}, zerolog.Nop())

	s := New(Options{
		Addr:    ":0",
		Status:  stubStatus{tickStatus: "2 interventions", health: evaluation.HealthWarning},
		State:   func() string { return "running" },
		Store:   store,
		Watcher: watcher,
	}, zerolog.Nop())

	srv := httptest.NewServer(s.http.Handler)
	t.Cleanup(srv.Close)
	return srv, store, watcher
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()

	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode status payload: %v", err)
	}
	if payload["tick_status"] != "2 interventions" {
		t.Fatalf("unexpected tick_status: %q", payload["tick_status"])
	}
	if payload["health"] != evaluation.HealthWarning {
		t.Fatalf("unexpected health: %q", payload["health"])
	}
	if payload["state"] != "running" {
		t.Fatalf("unexpected state: %q", payload["state"])
	}
}

func TestInterventionsEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)

	for _, description := range []string{"first", "second", "third"} {
		if _, err := store.AppendIntervention(context.Background(), evaluation.Intervention{
			Path:        evaluation.PathInfrastructure,
			Severity:    evaluation.SeverityCritical,
			Description: description,
		}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	resp, err := http.Get(srv.URL + "/interventions?limit=2")
	if err != nil {
		t.Fatalf("interventions request failed: %v", err)
	}
	defer resp.Body.Close()

	var records []storage.InterventionRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Description != "third" || records[1].Description != "second" {
		t.Fatalf("records out of order: %q then %q", records[0].Description, records[1].Description)
	}
}

func TestInterventionsRejectsBadLimit(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/interventions?limit=nope")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

// limitRecorder captures the limit the handler forwards to the store.
type limitRecorder struct {
	*storage.MemoryStore
	lastLimit int
}

func (l *limitRecorder) ListRecentInterventions(ctx context.Context, limit int) ([]storage.InterventionRecord, error) {
	l.lastLimit = limit
	return l.MemoryStore.ListRecentInterventions(ctx, limit)
}

func TestInterventionsCapsOversizedLimit(t *testing.T) {
	store := &limitRecorder{MemoryStore: storage.NewMemoryStore()}
	watcher := feed.NewWatcher(store, feed.Options{PollInterval: time.Second, RecentLimit: 10}, zerolog.Nop())

	s := New(Options{
		Addr:    ":0",
		Status:  stubStatus{tickStatus: "Operationally normal", health: evaluation.HealthOptimal},
		Store:   store,
		Watcher: watcher,
	}, zerolog.Nop())

	srv := httptest.NewServer(s.http.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/interventions?limit=100000")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("oversized limit should be capped, not rejected: %d", resp.StatusCode)
	}
	if store.lastLimit != maxListLimit {
		t.Fatalf("expected store limit capped at %d, got %d", maxListLimit, store.lastLimit)
	}
}

func TestFeedWebsocketDeliversUpdates(t *testing.T) {
	srv, store, watcher := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	// keep appending until the handler's subscription catches a broadcast
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(20 * time.Millisecond):
				_, _ = store.AppendIntervention(context.Background(), evaluation.Intervention{
					Path:        evaluation.PathSensor,
					Severity:    evaluation.SeverityCritical,
					Description: "Sensor anomaly score at 91.0% exceeds containment limit",
				})
				watcher.Poll(context.Background())
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update feed.Update
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read feed update: %v", err)
	}
	if update.Total < 1 || len(update.Records) < 1 {
		t.Fatalf("unexpected update: %#v", update)
	}
	if update.Records[0].Path != evaluation.PathSensor {
		t.Fatalf("unexpected record path: %s", update.Records[0].Path)
	}
}
