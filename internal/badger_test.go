package internal

import (
	"encoding/json"
	"evcp/models"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *BadgerDB {
	t.Helper()
	store, err := NewInMemoryBadgerStore()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerQueueEntries(t *testing.T) {
	store := newTestStore(t)
	for i, id := range []string{"c", "a", "b"} {
		entry := &models.EnqueuedRequest{
			Id:         id,
			Sequence:   uint64(i + 1),
			Command:    "StatusNotification",
			Payload:    json.RawMessage(`{"connectorId":1}`),
			EnqueuedAt: time.Now(),
			Status:     models.QueueStatusNew,
		}
		if err := store.SaveQueueEntry(entry); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := store.GetQueueEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, want := range []string{"c", "a", "b"} {
		if entries[i].Id != want {
			t.Errorf("entry %d = %s, want %s", i, entries[i].Id, want)
		}
	}

	if err = store.DeleteQueueEntry("a"); err != nil {
		t.Fatal(err)
	}
	if err = store.DeleteQueueEntry("missing"); err != nil {
		t.Errorf("deleting a missing entry: %v", err)
	}
	entries, _ = store.GetQueueEntries()
	if len(entries) != 2 {
		t.Errorf("got %d entries after delete, want 2", len(entries))
	}
}

func TestBadgerConfigurationEntries(t *testing.T) {
	store := newTestStore(t)
	entry := &models.ConfigurationEntry{Key: "HeartbeatInterval", Value: "60", AccessRights: models.ReadWrite}
	if err := store.SaveConfigurationEntry(entry); err != nil {
		t.Fatal(err)
	}
	entry.Value = "120"
	if err := store.SaveConfigurationEntry(entry); err != nil {
		t.Fatal(err)
	}
	entries, err := store.GetConfigurationEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Value != "120" {
		t.Errorf("unexpected entries %+v", entries)
	}
}

func TestBadgerSubscriptions(t *testing.T) {
	store := newTestStore(t)
	subscription := &models.UserSubscription{ChatID: 42, User: "operator", SubscriptionType: "status"}
	if err := store.AddSubscription(subscription); err != nil {
		t.Fatal(err)
	}
	subscriptions, _ := store.GetSubscriptions()
	if len(subscriptions) != 1 || subscriptions[0].User != "operator" {
		t.Errorf("unexpected subscriptions %+v", subscriptions)
	}
	if err := store.DeleteSubscription(subscription); err != nil {
		t.Fatal(err)
	}
	subscriptions, _ = store.GetSubscriptions()
	if len(subscriptions) != 0 {
		t.Errorf("subscription not deleted")
	}
}
