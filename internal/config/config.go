package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// VerifierConfig configures the AI proof-verification backend. The API is
// OpenAI-compatible; leaving APIKey empty disables verification (proofs
// are then accepted with a sentinel distraction tag).
type VerifierConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	APIKey  string `yaml:"api_key" json:"api_key"`
	Model   string `yaml:"model" json:"model"`
	// TimeoutSeconds bounds a single verification call.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// MailConfig configures the outbound mail API used for reminder and
// daily-summary emails.
type MailConfig struct {
	// Endpoint is a JSON mail API accepting {from, to, subject, text}.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	APIKey   string `yaml:"api_key" json:"api_key"`
	From     string `yaml:"from" json:"from"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone all wall-clock schedule arithmetic is
	// performed in (e.g. "America/New_York"). Empty means the host's local
	// timezone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DBPath is the SQLite database file path.
	DBPath string `yaml:"db_path" json:"db_path"`

	// LeadMinutes is the default reminder lead time for users who have not
	// set one in their preferences.
	LeadMinutes int `yaml:"lead_minutes" json:"lead_minutes"`

	// SummaryCron is a cron-style schedule string for the daily summary
	// job (e.g. "0 21 * * *" for 21:00 every day).
	SummaryCron string `yaml:"summary_cron" json:"summary_cron"`

	Verifier VerifierConfig `yaml:"verifier" json:"verifier"`
	Mail     MailConfig     `yaml:"mail" json:"mail"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health and /card.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "",
		DBPath:      "/var/lib/lockind/lockind.db",
		LeadMinutes: 10,
		SummaryCron: "0 21 * * *",
		Verifier: VerifierConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 60,
		},
		Mail: MailConfig{
			Endpoint: "https://api.resend.com/emails",
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.DBPath == "" {
		c.DBPath = "/var/lib/lockind/lockind.db"
	}
	if c.LeadMinutes <= 0 {
		c.LeadMinutes = 10
	}
	if c.SummaryCron == "" {
		c.SummaryCron = "0 21 * * *"
	}
	if c.Verifier.BaseURL == "" {
		c.Verifier.BaseURL = "https://api.openai.com/v1"
	}
	if c.Verifier.Model == "" {
		c.Verifier.Model = "gpt-4o-mini"
	}
	if c.Verifier.TimeoutSeconds <= 0 {
		c.Verifier.TimeoutSeconds = 60
	}
	if c.Mail.Endpoint == "" {
		c.Mail.Endpoint = "https://api.resend.com/emails"
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".lockind-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	// Rename over the target path.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
