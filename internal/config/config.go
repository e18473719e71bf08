package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings for donna. Values come from an optional
// donna.yaml file with environment variables taking precedence for secrets.
type Config struct {
	// Discord transport
	DiscordToken   string `yaml:"-"`
	DiscordChannel string `yaml:"discord_channel"`
	OwnerID        string `yaml:"owner_id"`
	OwnerName      string `yaml:"owner_name"`

	// Anthropic
	AnthropicKey string `yaml:"-"`
	Model        string `yaml:"model"`

	// Microsoft Graph
	MSClientID     string `yaml:"-"`
	MSTenantID     string `yaml:"-"`
	MSClientSecret string `yaml:"-"`
	MSUser         string `yaml:"graph_user"` // UPN of the mailbox; empty means /me

	// Vault
	VaultRoot     string `yaml:"vault_root"`     // OneDrive path to the vault
	WeeklyPlan    string `yaml:"weekly_plan"`    // plan note name within the vault
	HomeTimezone  string `yaml:"home_timezone"`  // IANA name, e.g. America/Vancouver
	StatePath     string `yaml:"state_path"`     // local dir for databases and journal
	CacheSize     int    `yaml:"cache_size"`     // recent turns kept in memory per conversation
	RetentionDays int    `yaml:"retention_days"` // conversation rows older than this are pruned
}

// Defaults applied when neither the YAML file nor the environment sets a value.
const (
	defaultModel     = "claude-3-5-sonnet-20240620"
	defaultPlan      = "Tasks/WeeklyPlan"
	defaultVaultRoot = "ObsidianVault"
	defaultCacheSize = 10
	defaultRetention = 90
	defaultStatePath = "state"
)

// Load reads donna.yaml (if present), then overlays environment variables.
// Secrets are environment-only and never read from the YAML file.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Model:         defaultModel,
		VaultRoot:     defaultVaultRoot,
		WeeklyPlan:    defaultPlan,
		HomeTimezone:  "UTC",
		StatePath:     defaultStatePath,
		CacheSize:     defaultCacheSize,
		RetentionDays: defaultRetention,
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	overlay(&cfg.DiscordToken, "DISCORD_TOKEN")
	overlay(&cfg.DiscordChannel, "DISCORD_CHANNEL_ID")
	overlay(&cfg.OwnerID, "DISCORD_OWNER_ID")
	overlay(&cfg.OwnerName, "OWNER_NAME")
	overlay(&cfg.AnthropicKey, "ANTHROPIC_API_KEY")
	overlay(&cfg.Model, "DONNA_MODEL")
	overlay(&cfg.MSClientID, "MS_CLIENT_ID")
	overlay(&cfg.MSTenantID, "MS_TENANT_ID")
	overlay(&cfg.MSClientSecret, "MS_CLIENT_SECRET")
	overlay(&cfg.MSUser, "MS_USER")
	overlay(&cfg.VaultRoot, "VAULT_ROOT")
	overlay(&cfg.HomeTimezone, "HOME_TIMEZONE")
	overlay(&cfg.StatePath, "STATE_PATH")

	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaultRetention
	}

	return cfg, nil
}

// HomeLocation resolves the configured home timezone.
func (c *Config) HomeLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.HomeTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid home_timezone %q: %w", c.HomeTimezone, err)
	}
	return loc, nil
}

func overlay(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
