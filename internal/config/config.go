// Package config loads the notifyd configuration.
//
// Configuration comes from an optional YAML file, selected with --config
// or NOTIFY_CONFIG, on top of built-in defaults. A small set of
// environment variables override the file:
//   - PORT
//   - DB_PATH
//   - NOTIFY_HOST
//   - NOTIFY_TOKEN
//   - NOTIFY_SHARED_SECRET (base64)
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/homebase-id/odin-notify/internal/identity"
	"github.com/homebase-id/odin-notify/internal/model"
	"github.com/homebase-id/odin-notify/internal/notify"
)

// Config is the daemon configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Identity IdentityConfig `yaml:"identity"`
	Notify   NotifyConfig   `yaml:"notify"`

	// Peers are remote identity hosts to follow through the peer transport.
	Peers []string `yaml:"peers"`
}

// ServerConfig configures the local HTTP surface.
type ServerConfig struct {
	Port   string `yaml:"port"`
	DBPath string `yaml:"db_path"`
}

// IdentityConfig describes the identity host this daemon is authenticated against.
type IdentityConfig struct {
	Host    string           `yaml:"host"`
	APIType identity.APIType `yaml:"api_type"`
	Token   string           `yaml:"token"`

	// SharedSecret is base64 encoded.
	SharedSecret string `yaml:"shared_secret"`

	// Insecure selects http/ws. Development only.
	Insecure bool `yaml:"insecure"`
}

// BackoffConfig is a reconnect policy.
type BackoffConfig struct {
	Step time.Duration `yaml:"step"`
	Cap  time.Duration `yaml:"cap"`
}

// NotifyConfig tunes the notification transports.
type NotifyConfig struct {
	Drives       []model.TargetDrive `yaml:"drives"`
	PingInterval time.Duration       `yaml:"ping_interval"`
	WaitTimeMs   int                 `yaml:"wait_time_ms"`
	BatchSize    int                 `yaml:"batch_size"`
	LocalBackoff BackoffConfig       `yaml:"local_backoff"`
	PeerBackoff  BackoffConfig       `yaml:"peer_backoff"`
	LogDebug     bool                `yaml:"log_debug"`

	// RecordDir, when set, receives one stream recording per transport.
	RecordDir string `yaml:"record_dir"`
}

// Default returns the configuration used before the file and environment are applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:   "8080",
			DBPath: "data/notifications.db",
		},
		Identity: IdentityConfig{
			APIType: identity.APITypeOwner,
		},
		Notify: NotifyConfig{
			PingInterval: notify.DefaultPingInterval,
			WaitTimeMs:   notify.DefaultWaitTimeMs,
			BatchSize:    notify.DefaultBatchSize,
			LocalBackoff: BackoffConfig{Step: notify.LocalBackoff.Step, Cap: notify.LocalBackoff.Cap},
			PeerBackoff:  BackoffConfig{Step: notify.PeerBackoff.Step, Cap: notify.PeerBackoff.Cap},
		},
	}
}

// Load builds the configuration from path, when non-empty, and the
// environment. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.DBPath = getEnv("DB_PATH", c.Server.DBPath)
	c.Identity.Host = getEnv("NOTIFY_HOST", c.Identity.Host)
	c.Identity.Token = getEnv("NOTIFY_TOKEN", c.Identity.Token)
	c.Identity.SharedSecret = getEnv("NOTIFY_SHARED_SECRET", c.Identity.SharedSecret)
}

// SharedSecretBytes decodes the identity shared secret.
func (c *Config) SharedSecretBytes() ([]byte, error) {
	secret, err := base64.StdEncoding.DecodeString(c.Identity.SharedSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid identity.shared_secret: %w", err)
	}
	return secret, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, fmt.Errorf("server.port is required"))
	}
	if c.Server.DBPath == "" {
		errs = append(errs, fmt.Errorf("server.db_path is required"))
	}

	if c.Identity.Host == "" {
		errs = append(errs, fmt.Errorf("identity.host is required"))
	}
	if !c.Identity.APIType.Valid() || c.Identity.APIType == identity.APITypeGuest {
		errs = append(errs, fmt.Errorf("invalid identity.api_type: %q", c.Identity.APIType))
	}
	if secret, err := c.SharedSecretBytes(); err != nil {
		errs = append(errs, err)
	} else if n := len(secret); n != 16 && n != 24 && n != 32 {
		errs = append(errs, fmt.Errorf("identity.shared_secret must decode to 16, 24 or 32 bytes, got %d", n))
	}

	if c.Notify.PingInterval <= 0 {
		errs = append(errs, fmt.Errorf("invalid notify.ping_interval: %s", c.Notify.PingInterval))
	}
	if c.Notify.WaitTimeMs <= 0 {
		errs = append(errs, fmt.Errorf("invalid notify.wait_time_ms: %d", c.Notify.WaitTimeMs))
	}
	if c.Notify.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid notify.batch_size: %d", c.Notify.BatchSize))
	}
	for name, b := range map[string]BackoffConfig{"local_backoff": c.Notify.LocalBackoff, "peer_backoff": c.Notify.PeerBackoff} {
		if b.Step <= 0 || b.Cap < 0 {
			errs = append(errs, fmt.Errorf("invalid notify.%s: step=%s cap=%s", name, b.Step, b.Cap))
		}
	}

	for _, peer := range c.Peers {
		if peer == "" || peer == c.Identity.Host {
			errs = append(errs, fmt.Errorf("invalid peer %q", peer))
		}
	}

	return errors.Join(errs...)
}

// ManagerOptions returns notify options for the given transport; the
// caller provides Auth.
func (c *Config) ManagerOptions(peer bool) *notify.Options {
	b := c.Notify.LocalBackoff
	if peer {
		b = c.Notify.PeerBackoff
	}
	return &notify.Options{
		PingInterval: c.Notify.PingInterval,
		Backoff:      notify.Backoff{Step: b.Step, Cap: b.Cap},
		WaitTimeMs:   c.Notify.WaitTimeMs,
		BatchSize:    c.Notify.BatchSize,
		LogDebug:     c.Notify.LogDebug,
	}
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
