package config

import (
	"evcp/utility"
	"github.com/ilyakaznacheev/cleanenv"
	"log"
	"sync"
	"time"
)

type Connector struct {
	Id          int `yaml:"id"`
	MaxPower    int `yaml:"max_power" env-default:"22000"`
	MaxCapacity int `yaml:"max_capacity" env-default:"32"`
}

type Config struct {
	IsDebug     bool `yaml:"is_debug" env:"EVCP_DEBUG" env-default:"false"`
	ChargePoint struct {
		Id              string `yaml:"id" env:"EVCP_ID"`
		Vendor          string `yaml:"vendor" env-default:"evcp"`
		Model           string `yaml:"model" env-default:"evcp-1"`
		SerialNumber    string `yaml:"serial_number" env-default:""`
		FirmwareVersion string `yaml:"firmware_version" env-default:""`
		Location        string `yaml:"location" env-default:"default"`
	} `yaml:"charge_point"`
	CentralSystem struct {
		Url            string        `yaml:"url" env:"EVCP_CSMS_URL"`
		Id             string        `yaml:"id" env-default:"csms"`
		SubProtocol    string        `yaml:"sub_protocol" env-default:"ocpp1.6"`
		User           string        `yaml:"user" env:"EVCP_CSMS_USER" env-default:""`
		Password       string        `yaml:"password" env:"EVCP_CSMS_PASSWORD" env-default:""`
		SkipVerify     bool          `yaml:"tls_skip_verify" env-default:"false"`
		RequestTimeout time.Duration `yaml:"request_timeout" env-default:"1m"`
	} `yaml:"central_system"`
	Connectors []Connector `yaml:"connectors"`
	Heartbeat  struct {
		DefaultInterval time.Duration `yaml:"default_interval" env-default:"5m"`
	} `yaml:"heartbeat"`
	Maintenance struct {
		Interval    time.Duration `yaml:"interval" env-default:"10s"`
		LockTimeout time.Duration `yaml:"lock_timeout" env-default:"1s"`
		MaxAttempts int           `yaml:"max_attempts" env-default:"5"`
		EntryTTL    time.Duration `yaml:"entry_ttl" env-default:"24h"`
	} `yaml:"maintenance"`
	Signature struct {
		Policy            string `yaml:"policy" env-default:"none"`
		KeyId             string `yaml:"key_id" env-default:""`
		Secret            string `yaml:"secret" env:"EVCP_SIGNATURE_SECRET" env-default:""`
		PrivateKey        string `yaml:"private_key" env:"EVCP_SIGNATURE_KEY" env-default:""`
		PeerPublicKey     string `yaml:"peer_public_key" env-default:""`
		VerifyRequests    bool   `yaml:"verify_requests" env-default:"false"`
		VerifyResponses   bool   `yaml:"verify_responses" env-default:"false"`
		RequireSignatures bool   `yaml:"require_signatures" env-default:"false"`
	} `yaml:"signature"`
	Store struct {
		Type string `yaml:"type" env-default:"memory"`
		Path string `yaml:"path" env-default:"data"`
	} `yaml:"store"`
	Mongo struct {
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:"admin"`
		Password string `yaml:"password" env-default:"pass"`
		Database string `yaml:"database" env-default:"evcp"`
	} `yaml:"mongo"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		BindIP  string `yaml:"bind_ip" env-default:"0.0.0.0"`
		Port    string `yaml:"port" env-default:"9100"`
	} `yaml:"metrics"`
	Telegram struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		ApiKey  string `yaml:"api_key" env:"EVCP_TELEGRAM_KEY" env-default:""`
	} `yaml:"telegram"`
	Pusher struct {
		Enabled       bool   `yaml:"enabled" env-default:"false"`
		AppID         string `yaml:"app_id" env-default:""`
		Key           string `yaml:"key" env-default:""`
		Secret        string `yaml:"secret" env:"EVCP_PUSHER_SECRET" env-default:""`
		Cluster       string `yaml:"cluster" env-default:"eu"`
		ChannelPrefix string `yaml:"channel_prefix" env-default:"evcp"`
	} `yaml:"pusher"`
}

var instance *Config
var once sync.Once

// GetConfig reads the file once per process; later calls return the same instance
func GetConfig(path string) (*Config, error) {
	var err error
	once.Do(func() {
		log.Println("reading config", path)
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			log.Println(desc)
			instance = nil
			return
		}
		if err = instance.Validate(); err != nil {
			instance = nil
		}
	})
	if instance == nil && err == nil {
		err = utility.Err("failed to read configuration file")
	}
	return instance, err
}

// Default returns a configuration with every env-default applied
func Default() *Config {
	conf := &Config{}
	_ = cleanenv.ReadEnv(conf)
	return conf
}

func (c *Config) Validate() error {
	if c.ChargePoint.Id == "" {
		return utility.Err("charge_point.id is required")
	}
	if c.CentralSystem.Url == "" {
		return utility.Err("central_system.url is required")
	}
	if len(c.Connectors) == 0 {
		return utility.Err("at least one connector is required")
	}
	ids := make(map[int]bool)
	for _, connector := range c.Connectors {
		if connector.Id < 1 {
			return utility.Errf("connector id %d: must be greater than zero", connector.Id)
		}
		if ids[connector.Id] {
			return utility.Errf("connector id %d: duplicated", connector.Id)
		}
		ids[connector.Id] = true
	}
	if c.Heartbeat.DefaultInterval <= 0 || c.Maintenance.Interval <= 0 || c.Maintenance.LockTimeout <= 0 {
		return utility.Err("heartbeat and maintenance intervals must be positive")
	}
	if c.CentralSystem.RequestTimeout <= 0 {
		return utility.Err("central_system.request_timeout must be positive")
	}
	switch c.Signature.Policy {
	case "none", "hmac", "ed25519":
	default:
		return utility.Errf("unknown signature policy: %s", c.Signature.Policy)
	}
	switch c.Store.Type {
	case "memory", "badger", "mongo":
	default:
		return utility.Errf("unknown store type: %s", c.Store.Type)
	}
	return nil
}
