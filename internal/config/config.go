package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models mdversion.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Limits struct {
		MaxContentBytes int `yaml:"max_content_bytes"`
		MaxDepth        int `yaml:"max_depth"`
	} `yaml:"limits"`
	Cache struct {
		ActiveTTLSeconds int `yaml:"active_ttl_seconds"`
	} `yaml:"cache"`
	Auth struct {
		AllowLegacyActorHeader bool                `yaml:"allow_legacy_actor_header"`
		DefaultRole            string              `yaml:"default_role"`
		Roles                  map[string]RoleSpec `yaml:"roles"`
	} `yaml:"auth"`
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type RoleSpec struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

var logLevels = map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Limits.MaxContentBytes < 0 {
		return fmt.Errorf("config.limits.max_content_bytes must be >= 0")
	}
	if c.Limits.MaxDepth < 0 {
		return fmt.Errorf("config.limits.max_depth must be >= 0")
	}
	if c.Cache.ActiveTTLSeconds < 0 {
		return fmt.Errorf("config.cache.active_ttl_seconds must be >= 0")
	}
	if !logLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("config.logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	for roleID, role := range c.Auth.Roles {
		if roleID == "" {
			return fmt.Errorf("config.auth.roles contains empty role id")
		}
		for _, perm := range role.Permissions {
			if perm == "" {
				return fmt.Errorf("role %s has empty permission id", roleID)
			}
		}
	}
	if c.Auth.DefaultRole != "" && len(c.Auth.Roles) > 0 {
		if _, ok := c.Auth.Roles[c.Auth.DefaultRole]; !ok {
			return fmt.Errorf("config.auth.default_role %s is not defined", c.Auth.DefaultRole)
		}
	}
	for i, hook := range c.Webhooks {
		u, err := url.Parse(hook.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("webhooks[%d].url %q is not an absolute URL", i, hook.URL)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhooks[%d].timeout_seconds must be >= 0", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "mdversion.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with mdv config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses config from raw YAML bytes, fills unset fields from the defaults, and validates.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Permissions returns the permissions granted by roles, falling back to the default role when
// roles is empty.
func (c *Config) Permissions(roles []string) []string {
	if len(roles) == 0 && c.Auth.DefaultRole != "" {
		roles = []string{c.Auth.DefaultRole}
	}
	seen := map[string]bool{}
	var perms []string
	for _, r := range roles {
		for _, p := range c.Auth.Roles[r].Permissions {
			if !seen[p] {
				seen[p] = true
				perms = append(perms, p)
			}
		}
	}
	return perms
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v1

limits:
  max_content_bytes: 1048576
  max_depth: 50

cache:
  active_ttl_seconds: 60

auth:
  allow_legacy_actor_header: false
  default_role: publisher
  roles:
    viewer:
      description: "Read-only access"
      permissions: []
    editor:
      description: "Create documents and versions"
      permissions: [document.write]
    publisher:
      description: "Editor plus lifecycle and activation"
      permissions: [document.write, version.transition, version.activate]
    admin:
      description: "Everything, including schemas and API keys"
      permissions: [document.write, version.transition, version.activate, schema.write, apikey.manage]

logging:
  level: info
  pretty: false

webhooks: []
`
