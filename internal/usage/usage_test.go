package usage

import (
	"context"
	"testing"
	"time"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRecord_persistsAndIsQueryable(t *testing.T) {
	r := newTestRecorder(t)
	r.Record(Record{Timestamp: time.Now(), ProviderKey: "p1", ModelID: "gpt-4o", Success: true})

	// Wait for the drain goroutine to persist the write; Close would also
	// close the database this test queries below.
	for len(r.queue) > 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)

	var count int
	if err := r.db.QueryRow(`SELECT count(*) FROM usage_records`).Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 persisted record, got %d", count)
	}
}

func TestPrune_removesOlderThanRetention(t *testing.T) {
	r := newTestRecorder(t)
	old := time.Now().Add(-100 * 24 * time.Hour)
	recent := time.Now()
	r.Record(Record{Timestamp: old, ProviderKey: "p1"})
	r.Record(Record{Timestamp: recent, ProviderKey: "p1"})

	// Give the drain goroutine a moment to persist both writes before pruning.
	r.queue <- Record{Timestamp: recent, ProviderKey: "flush"}
	for len(r.queue) > 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)

	deleted, err := r.Prune(context.Background(), 90*24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 pruned record, got %d", deleted)
	}
}

func TestRecord_dropsOldestWhenQueueFull(t *testing.T) {
	r := &Recorder{queue: make(chan Record, 1)}
	r.queue <- Record{ProviderKey: "first"}
	r.Record(Record{ProviderKey: "second"})

	if r.Dropped.Load() != 1 {
		t.Errorf("expected 1 dropped record, got %d", r.Dropped.Load())
	}
	got := <-r.queue
	if got.ProviderKey != "second" {
		t.Errorf("expected the newest record to survive, got %q", got.ProviderKey)
	}
}
