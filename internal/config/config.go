// Package config loads the service configuration from a YAML (or JSON) file and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/bpmgate/pkg/persistence/middleware"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. BPMGATE_SERVER_PORT.
const EnvPrefix = "BPMGATE_"

type Config struct {
	Server        ServerConfig       `yaml:"server" json:"server"`
	LogLevel      string             `yaml:"logLevel" json:"logLevel"`
	Engine        EngineConfig       `yaml:"engine" json:"engine"`
	Audit         AuditConfig        `yaml:"audit" json:"audit"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Locker        string             `yaml:"locker" json:"locker"`
	Redis         RedisConfig        `yaml:"redis" json:"redis"`
	Datasources   DatasourceConfig   `yaml:"datasources" json:"datasources"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" json:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
}

// EngineConfig selects the process engine: "memory" or "camunda".
type EngineConfig struct {
	Type     string        `yaml:"type" json:"type"`
	BaseURL  string        `yaml:"baseUrl" json:"baseUrl"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	Retries  int           `yaml:"retries" json:"retries"`
	Username string        `yaml:"username" json:"username"`
	Password string        `yaml:"password" json:"password"`
}

// AuditConfig selects the audit store: "memory", "redis" or "sqlite".
type AuditConfig struct {
	Store      string        `yaml:"store" json:"store"`
	SQLitePath string        `yaml:"sqlitePath" json:"sqlitePath"`
	TTL        time.Duration `yaml:"ttl" json:"ttl"`
	// MaskFields are patterns of record fields replaced by "***" before storage.
	MaskFields []string `yaml:"maskFields" json:"maskFields"`
	// EncryptionKey is a base64 AES-256 key sealing assignees and reasons at rest.
	EncryptionKey string `yaml:"encryptionKey" json:"encryptionKey"`
}

// NotificationConfig lists the enabled channels: "log" and/or "redis".
type NotificationConfig struct {
	Channels []string `yaml:"channels" json:"channels"`
	Stream   string   `yaml:"stream" json:"stream"`
}

type RedisConfig struct {
	Address  string `yaml:"address" json:"address"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

// DatasourceConfig selects the catalog datasources: "memory" or "mongo".
type DatasourceConfig struct {
	Type      string      `yaml:"type" json:"type"`
	Primary   MongoSource `yaml:"primary" json:"primary"`
	Secondary MongoSource `yaml:"secondary" json:"secondary"`
}

type MongoSource struct {
	URI      string `yaml:"uri" json:"uri"`
	Database string `yaml:"database" json:"database"`
}

// Default returns a self-contained configuration: in-memory engine, stores and datasources.
func Default() Config {
	return Config{
		Server:        ServerConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
		LogLevel:      "info",
		Engine:        EngineConfig{Type: "memory", Timeout: 30 * time.Second, Retries: 3},
		Audit:         AuditConfig{Store: "memory", SQLitePath: "bpmgate.db"},
		Notifications: NotificationConfig{Channels: []string{"log"}},
		Locker:        "local",
		Redis:         RedisConfig{Address: "localhost:6379"},
		Datasources: DatasourceConfig{
			Type:      "memory",
			Primary:   MongoSource{Database: "primary"},
			Secondary: MongoSource{Database: "secondary"},
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		if err := decode(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// ApplyEnv overlays BPMGATE_* variables from environ (os.Environ format).
// Sections are separated by underscores: BPMGATE_ENGINE_BASEURL sets engine.baseUrl.
// Lists are comma separated.
func (c *Config) ApplyEnv(environ []string) error {
	tree := map[string]any{}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		path := strings.Split(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "_")
		node := tree
		for _, p := range path[:len(path)-1] {
			next, ok := node[p].(map[string]any)
			if !ok {
				next = map[string]any{}
				node[p] = next
			}
			node = next
		}
		node[path[len(path)-1]] = value
	}
	if len(tree) == 0 {
		return nil
	}
	return decode(tree, c)
}

// decode merges a generic tree into cfg, matching keys against yaml tags case-insensitively.
func decode(tree map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Result:           cfg,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(tree)
}

// Validate checks the selected backends and their required settings.
func (c Config) Validate() error {
	var errs []error
	check := func(field, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown value %q (want one of %s)", field, value, strings.Join(allowed, ", ")))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}
	check("engine.type", c.Engine.Type, "memory", "camunda")
	if c.Engine.Type == "camunda" && c.Engine.BaseURL == "" {
		errs = append(errs, errors.New("engine.baseUrl is required for the camunda engine"))
	}
	if c.Engine.Retries < 0 {
		errs = append(errs, fmt.Errorf("engine.retries: %d must not be negative", c.Engine.Retries))
	}
	check("audit.store", c.Audit.Store, "memory", "redis", "sqlite")
	if c.Audit.Store == "sqlite" && c.Audit.SQLitePath == "" {
		errs = append(errs, errors.New("audit.sqlitePath is required for the sqlite store"))
	}
	for _, p := range c.Audit.MaskFields {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("audit.maskFields: %w", err))
		}
	}
	if c.Audit.EncryptionKey != "" {
		if _, err := middleware.ParseKey(c.Audit.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("audit.encryptionKey: %w", err))
		}
	}
	for _, ch := range c.Notifications.Channels {
		check("notifications.channels", ch, "log", "redis")
	}
	check("locker", c.Locker, "local", "redis")
	check("datasources.type", c.Datasources.Type, "memory", "mongo")
	if c.Datasources.Type == "mongo" && (c.Datasources.Primary.URI == "" || c.Datasources.Secondary.URI == "") {
		errs = append(errs, errors.New("datasources.primary.uri and datasources.secondary.uri are required for mongo"))
	}
	return errors.Join(errs...)
}

// UsesRedis reports whether any component needs the redis client.
func (c Config) UsesRedis() bool {
	if c.Audit.Store == "redis" || c.Locker == "redis" {
		return true
	}
	for _, ch := range c.Notifications.Channels {
		if ch == "redis" {
			return true
		}
	}
	return false
}
