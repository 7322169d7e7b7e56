package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultCheckpointRetain is how many committed turns keep their checkpoint
// when the config does not say.
const DefaultCheckpointRetain = 3

// Config represents the main configuration for turnkeep.
type Config struct {
	DataDir     string           `toml:"data_dir"`
	LogDir      string           `toml:"log_dir"`
	Database    DatabaseConfig   `toml:"database"`
	Checkpoints CheckpointConfig `toml:"checkpoints"`
	Vaults      []VaultConfig    `toml:"vaults"`
	Encryption  EncryptionConfig `toml:"encryption"`
	Telemetry   TelemetryConfig  `toml:"telemetry"`
}

// DatabaseConfig selects the campaign store backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type string `toml:"type"` // "sqlite" or "memory"
}

// CheckpointConfig selects where checkpoints live and how many are kept.
type CheckpointConfig struct {
	Type   string `toml:"type"`   // "filesystem" or "memory"
	Retain int    `toml:"retain"` // committed turns that keep a checkpoint; at least 1
}

// EncryptionConfig holds paths to the age key pair used for encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// VaultConfig represents configuration for an archive backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `toml:"enabled"`
	Exporter    string `toml:"exporter"`           // "stdout" or "otlphttp"
	Endpoint    string `toml:"endpoint,omitempty"` // only used for exporter=otlphttp
	ServiceName string `toml:"service_name"`
}

// NewConfig creates a new Config rooted at dataDir with default settings.
func NewConfig(dataDir string) *Config {
	return &Config{
		DataDir:     dataDir,
		LogDir:      filepath.Join(dataDir, "log"),
		Database:    DatabaseConfig{Type: "sqlite"},
		Checkpoints: CheckpointConfig{Type: "filesystem", Retain: DefaultCheckpointRetain},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(dataDir, "keys", "turnkeep.pub"),
			PrivateKeyPath: filepath.Join(dataDir, "keys", "turnkeep.key"),
		},
		Telemetry: TelemetryConfig{Exporter: "stdout", ServiceName: "turnkeep"},
	}
}

// Validate checks the tagged unions and required paths.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	switch c.Database.Type {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown database type: %q", c.Database.Type)
	}
	switch c.Checkpoints.Type {
	case "filesystem", "memory":
	default:
		return fmt.Errorf("unknown checkpoint type: %q", c.Checkpoints.Type)
	}
	if c.Checkpoints.Retain < 0 {
		return fmt.Errorf("checkpoints.retain must not be negative")
	}
	for i, v := range c.Vaults {
		switch v.Type {
		case "memory", "filesystem", "s3":
		default:
			return fmt.Errorf("vault %d: unknown vault type: %q", i, v.Type)
		}
	}
	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case "stdout", "otlphttp":
		default:
			return fmt.Errorf("unknown telemetry exporter: %q", c.Telemetry.Exporter)
		}
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Checkpoints.Retain == 0 {
		cfg.Checkpoints.Retain = DefaultCheckpointRetain
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Keys returns the TOML keys cfg encodes to, in file order, dotted for
// nested tables ("checkpoints.retain").
func Keys(cfg *Config) ([]string, error) {
	var buf bytes.Buffer
	if err := (&Manager{}).Write(&buf, cfg); err != nil {
		return nil, err
	}
	md, err := toml.Decode(buf.String(), &Config{})
	if err != nil {
		return nil, fmt.Errorf("decoding config keys: %w", err)
	}
	keys := make([]string, 0, len(md.Keys()))
	for _, k := range md.Keys() {
		keys = append(keys, k.String())
	}
	return keys, nil
}

// AsMap returns cfg keyed by its TOML names, with secrets masked.
func AsMap(cfg *Config) (map[string]any, error) {
	var buf bytes.Buffer
	if err := (&Manager{}).Write(&buf, cfg); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if _, err := toml.Decode(buf.String(), &out); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if vaults, ok := out["vaults"].([]map[string]any); ok {
		for _, v := range vaults {
			if _, ok := v["s3_secret_access_key"]; ok {
				v["s3_secret_access_key"] = "********"
			}
		}
	}
	return out, nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
