package storage

import (
	"errors"
	"testing"
)

func TestLogAndListNotificationsNewestFirst(t *testing.T) {
	store := newTestStore(t)

	mustLogNotification(t, store, "a", "n1", 100)
	mustLogNotification(t, store, "b", "n2", 200)
	mustLogNotification(t, store, "c", "n3", 300)

	all, err := store.ListNotifications(0)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Fatalf("unexpected order: %+v", all)
	}

	limited, err := store.ListNotifications(2)
	if err != nil {
		t.Fatalf("ListNotifications(2) failed: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "c" || limited[1].ID != "b" {
		t.Fatalf("unexpected limited result: %+v", limited)
	}
	if limited[0].DeviceKey != nil || limited[0].DismissedAt != nil {
		t.Fatalf("expected null device key and dismissal: %+v", limited[0])
	}
}

func TestMarkNotificationDismissedCoversDuplicates(t *testing.T) {
	store := newTestStore(t)

	mustLogNotification(t, store, "a", "dup", 100)
	mustLogNotification(t, store, "b", "dup", 200)
	mustLogNotification(t, store, "c", "other", 300)

	changed, err := store.MarkNotificationDismissed("dup", 500)
	if err != nil {
		t.Fatalf("MarkNotificationDismissed failed: %v", err)
	}
	if changed != 2 {
		t.Fatalf("expected 2 rows dismissed, got %d", changed)
	}

	again, err := store.MarkNotificationDismissed("dup", 600)
	if err != nil {
		t.Fatalf("second dismiss failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("already dismissed rows must not change, got %d", again)
	}

	record, err := store.GetNotification("a")
	if err != nil {
		t.Fatalf("GetNotification failed: %v", err)
	}
	if record.DismissedAt == nil || *record.DismissedAt != 500 {
		t.Fatalf("unexpected dismissal stamp: %+v", record.DismissedAt)
	}
	other, _ := store.GetNotification("c")
	if other.DismissedAt != nil {
		t.Fatalf("unrelated notification dismissed")
	}
}

func TestLogNotificationRequiresID(t *testing.T) {
	store := newTestStore(t)
	if err := store.LogNotification(NotificationRecord{NID: "n"}); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	if err := store.LogNotification(NotificationRecord{ID: "x", NID: "n"}); err != nil {
		t.Fatalf("LogNotification failed: %v", err)
	}
	if err := store.LogNotification(NotificationRecord{ID: "x", NID: "n"}); err == nil {
		t.Fatalf("expected duplicate id to fail")
	}
}

func TestPruneNotifications(t *testing.T) {
	store := newTestStore(t)
	mustLogNotification(t, store, "a", "n1", 100)
	mustLogNotification(t, store, "b", "n2", 200)

	pruned, err := store.PruneNotifications(150)
	if err != nil {
		t.Fatalf("PruneNotifications failed: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned row, got %d", pruned)
	}
}
