package feed

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"odas-monitor/internal/evaluation"
	"odas-monitor/internal/storage"
)

func appendRecord(t *testing.T, store *storage.MemoryStore, description string) {
	t.Helper()
	if _, err := store.AppendIntervention(context.Background(), evaluation.Intervention{
		Path:        evaluation.PathSensor,
		Severity:    evaluation.SeverityCritical,
		Description: description,
	}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
}

func TestWatcherBroadcastsOnGrowth(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	watcher := NewWatcher(store, Options{PollInterval: time.Second, RecentLimit: 10}, zerolog.Nop())

	updates, cancel := watcher.Subscribe()
	defer cancel()

	// first poll publishes the initial (empty) view
	watcher.Poll(ctx)
	select {
	case update := <-updates:
		if update.Total != 0 || len(update.Records) != 0 {
			t.Fatalf("initial update should be empty, got total=%d records=%d", update.Total, len(update.Records))
		}
	default:
		t.Fatal("expected an initial update after the first poll")
	}

	appendRecord(t, store, "first")
	watcher.Poll(ctx)

	select {
	case update := <-updates:
		if update.Total != 1 {
			t.Fatalf("expected total=1, got %d", update.Total)
		}
		if len(update.Records) != 1 || update.Records[0].Description != "first" {
			t.Fatalf("unexpected records: %#v", update.Records)
		}
	default:
		t.Fatal("expected an update after the log grew")
	}
}

func TestWatcherSkipsUnchangedLog(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	watcher := NewWatcher(store, Options{PollInterval: time.Second, RecentLimit: 10}, zerolog.Nop())

	updates, cancel := watcher.Subscribe()
	defer cancel()

	watcher.Poll(ctx)
	<-updates

	// no growth between polls: nothing published
	watcher.Poll(ctx)
	select {
	case update := <-updates:
		t.Fatalf("unchanged log should not broadcast, got %#v", update)
	default:
	}
}

func TestWatcherSlowSubscriberSeesLatest(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	watcher := NewWatcher(store, Options{PollInterval: time.Second, RecentLimit: 10}, zerolog.Nop())

	updates, cancel := watcher.Subscribe()
	defer cancel()

	// subscriber never drains; each broadcast replaces the buffered update
	watcher.Poll(ctx)
	appendRecord(t, store, "first")
	watcher.Poll(ctx)
	appendRecord(t, store, "second")
	watcher.Poll(ctx)

	update := <-updates
	if update.Total != 2 {
		t.Fatalf("slow subscriber should see the latest update, got total=%d", update.Total)
	}
	if update.Records[0].Description != "second" {
		t.Fatalf("latest record should lead, got %q", update.Records[0].Description)
	}
}

func TestWatcherCancelClosesChannel(t *testing.T) {
	store := storage.NewMemoryStore()
	watcher := NewWatcher(store, Options{}, zerolog.Nop())

	updates, cancel := watcher.Subscribe()
	cancel()
	cancel() // idempotent

	if _, open := <-updates; open {
		t.Fatal("cancelled subscription should close its channel")
	}
}
