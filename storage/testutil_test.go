package storage

import (
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dataDir := t.TempDir()
	store, _, err := Open(dataDir)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close test store: %v", err)
		}
	})

	return store
}

func mustLogNotification(t *testing.T, store *Store, id, nid string, receivedAt int64) {
	t.Helper()

	err := store.LogNotification(NotificationRecord{
		ID:         id,
		NID:        nid,
		Title:      "Title " + id,
		Body:       "Body",
		App:        "Chat",
		Package:    "com.chat",
		ReceivedAt: receivedAt,
	})
	if err != nil {
		t.Fatalf("log notification %q: %v", id, err)
	}
}

func waitForCondition(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout %s", timeout)
}
