package chargepoint

import (
	"evcp/internal"
	"evcp/models"
	"evcp/ocpp/core"
	"reflect"
	"testing"
)

func newTestConfiguration() *ConfigurationStore {
	return NewConfigurationStore(DefaultConfiguration(2, 300, []string{"Core", "SmartCharging"}), &testLogger{})
}

func TestConfigurationChange(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		value  string
		status core.ConfigurationStatus
		stored string
	}{
		{"read only is never written", KeyNumberOfConnectors, "9", core.ConfigurationStatusRejected, "2"},
		{"writable key", "MeterValueSampleInterval", "15", core.ConfigurationStatusAccepted, "15"},
		{"reboot required", "WebSocketPingInterval", "10", core.ConfigurationStatusRebootRequired, "10"},
		{"unknown key is created", "VendorSpecificKey", "on", core.ConfigurationStatusAccepted, "on"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestConfiguration()
			if status := store.Change(tt.key, tt.value); status != tt.status {
				t.Errorf("Change() = %s, want %s", status, tt.status)
			}
			if value, _ := store.Value(tt.key); value != tt.stored {
				t.Errorf("value = %q, want %q", value, tt.stored)
			}
		})
	}
}

func TestConfigurationUnknownKeyEntry(t *testing.T) {
	store := newTestConfiguration()
	store.Change("Custom", "1")
	entry, ok := store.Entry("Custom")
	if !ok {
		t.Fatal("entry not created")
	}
	if entry.AccessRights != models.ReadWrite || entry.RebootRequired {
		t.Errorf("entry = %+v, want ReadWrite without reboot", entry)
	}
}

func TestConfigurationGet(t *testing.T) {
	store := newTestConfiguration()
	all, unknown := store.Get(nil)
	if len(all) != store.Len() || unknown != nil {
		t.Fatalf("Get(nil) returned %d of %d entries, unknown %v", len(all), store.Len(), unknown)
	}
	again, _ := store.Get(nil)
	if !reflect.DeepEqual(all, again) {
		t.Error("repeated GetConfiguration returned a different entry set")
	}
	for _, key := range all {
		if key.Key == KeyAuthorizationKey && key.Value != nil {
			t.Error("write only value disclosed")
		}
	}

	found, unknown := store.Get([]string{KeyHeartbeatInterval, "Missing"})
	if len(found) != 1 || *found[0].Value != "300" {
		t.Errorf("found = %+v", found)
	}
	if !reflect.DeepEqual(unknown, []string{"Missing"}) {
		t.Errorf("unknown = %v", unknown)
	}
}

func TestConfigurationListeners(t *testing.T) {
	store := newTestConfiguration()
	var changed []string
	store.OnChange(func(key, value string) {
		changed = append(changed, key+"="+value)
	})
	store.OnChange(func(key, value string) {
		panic("listener failure")
	})
	store.Change(KeyHeartbeatInterval, "60")
	store.Change(KeyNumberOfConnectors, "5")
	if !reflect.DeepEqual(changed, []string{"HeartbeatInterval=60"}) {
		t.Errorf("changed = %v", changed)
	}
}

func TestConfigurationPersistence(t *testing.T) {
	db, err := internal.NewInMemoryBadgerStore()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	first := newTestConfiguration()
	if err = first.SetDatabase(db); err != nil {
		t.Fatal(err)
	}
	first.Change(KeyHeartbeatInterval, "120")
	first.Change("Custom", "x")

	second := newTestConfiguration()
	if err = second.SetDatabase(db); err != nil {
		t.Fatal(err)
	}
	if value, _ := second.Value(KeyHeartbeatInterval); value != "120" {
		t.Errorf("restored HeartbeatInterval = %q", value)
	}
	if value, _ := second.Value("Custom"); value != "x" {
		t.Errorf("restored Custom = %q", value)
	}
}
