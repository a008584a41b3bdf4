package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	conf := Default()
	conf.ChargePoint.Id = "cp-1"
	conf.CentralSystem.Url = "ws://localhost:5000/ws"
	conf.Connectors = []Connector{{Id: 1}, {Id: 2}}
	return conf
}

func TestDefault(t *testing.T) {
	conf := Default()
	if conf.CentralSystem.RequestTimeout != time.Minute {
		t.Errorf("request timeout = %v, want 1m", conf.CentralSystem.RequestTimeout)
	}
	if conf.Maintenance.MaxAttempts != 5 || conf.Maintenance.EntryTTL != 24*time.Hour {
		t.Errorf("unexpected maintenance defaults %+v", conf.Maintenance)
	}
	if conf.Signature.Policy != "none" || conf.Store.Type != "memory" {
		t.Errorf("unexpected defaults: policy %q, store %q", conf.Signature.Policy, conf.Store.Type)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no id", func(c *Config) { c.ChargePoint.Id = "" }, true},
		{"no url", func(c *Config) { c.CentralSystem.Url = "" }, true},
		{"no connectors", func(c *Config) { c.Connectors = nil }, true},
		{"zero connector id", func(c *Config) { c.Connectors = []Connector{{Id: 0}} }, true},
		{"duplicated connector", func(c *Config) { c.Connectors = []Connector{{Id: 1}, {Id: 1}} }, true},
		{"zero interval", func(c *Config) { c.Maintenance.Interval = 0 }, true},
		{"unknown policy", func(c *Config) { c.Signature.Policy = "rsa" }, true},
		{"unknown store", func(c *Config) { c.Store.Type = "redis" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := validConfig()
			tt.modify(conf)
			if err := conf.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
charge_point:
  id: cp-7
central_system:
  url: ws://csms.local/ocpp
connectors:
  - id: 1
    max_power: 11000
heartbeat:
  default_interval: 30s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	conf, err := GetConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if conf.ChargePoint.Id != "cp-7" || conf.Connectors[0].MaxPower != 11000 {
		t.Errorf("unexpected config %+v", conf)
	}
	if conf.Heartbeat.DefaultInterval != 30*time.Second {
		t.Errorf("heartbeat interval = %v", conf.Heartbeat.DefaultInterval)
	}
}
