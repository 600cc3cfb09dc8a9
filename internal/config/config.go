package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultRedirectURL is the callback the bootstrap utility listens on
	DefaultRedirectURL = "http://localhost:53847/callback"
	// DefaultAuthorityHost is the Microsoft identity platform login host
	DefaultAuthorityHost = "https://login.microsoftonline.com"

	configDirName = ".email-mcp"
)

// Token store backends
const (
	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
)

// IMAP SASL mechanisms
const (
	MechanismXOAuth2     = "XOAUTH2"
	MechanismOAuthBearer = "OAUTHBEARER"
)

// Config holds the application configuration
type Config struct {
	LogLevel         string        `yaml:"log_level"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	AuditDBPath      string        `yaml:"audit_db_path"`

	OAuth      OAuthConfig      `yaml:"oauth"`
	IMAP       IMAPConfig       `yaml:"imap"`
	TokenStore TokenStoreConfig `yaml:"token_store"`
}

// OAuthConfig holds the confidential client registration
type OAuthConfig struct {
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	TenantID      string `yaml:"tenant_id"`
	AuthorityHost string `yaml:"authority_host"`
	RedirectURL   string `yaml:"redirect_url"`
}

// IMAPConfig holds the mail server settings for the single account
type IMAPConfig struct {
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	User      string        `yaml:"user"`
	Mechanism string        `yaml:"mechanism"`
	Timeout   time.Duration `yaml:"timeout"`
}

// TokenStoreConfig selects where the credential cache is persisted
type TokenStoreConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	KeyringDir string `yaml:"keyring_dir"`
}

// LoadConfig builds the configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence (environment wins).
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func defaultConfig() *Config {
	dir := ConfigDir()
	return &Config{
		LogLevel:         "info",
		OperationTimeout: 2 * time.Minute,
		AuditDBPath:      filepath.Join(dir, "audit.db"),
		OAuth: OAuthConfig{
			AuthorityHost: DefaultAuthorityHost,
			RedirectURL:   DefaultRedirectURL,
		},
		IMAP: IMAPConfig{
			Port:      993,
			Mechanism: MechanismXOAuth2,
			Timeout:   30 * time.Second,
		},
		TokenStore: TokenStoreConfig{
			Backend:    TokenStoreFile,
			Path:       filepath.Join(dir, "token-cache.json"),
			KeyringDir: filepath.Join(dir, "keyring"),
		},
	}
}

// ConfigDir returns the per-user directory holding persisted state
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configDirName
	}
	return filepath.Join(home, configDirName)
}

// applyEnv overrides configuration with non-empty environment variables
func (c *Config) applyEnv() {
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.OperationTimeout = getEnvDuration("OPERATION_TIMEOUT", c.OperationTimeout)
	if v, ok := os.LookupEnv("AUDIT_DB_PATH"); ok {
		// An explicitly empty value disables the journal
		c.AuditDBPath = v
	}

	c.OAuth.ClientID = getEnv("AZURE_CLIENT_ID", c.OAuth.ClientID)
	c.OAuth.ClientSecret = getEnv("AZURE_CLIENT_SECRET", c.OAuth.ClientSecret)
	c.OAuth.TenantID = getEnv("AZURE_TENANT_ID", c.OAuth.TenantID)
	c.OAuth.AuthorityHost = getEnv("AUTHORITY_HOST", c.OAuth.AuthorityHost)
	c.OAuth.RedirectURL = getEnv("REDIRECT_URL", c.OAuth.RedirectURL)

	c.IMAP.Host = getEnv("IMAP_HOST", c.IMAP.Host)
	c.IMAP.Port = getEnvInt("IMAP_PORT", c.IMAP.Port)
	c.IMAP.User = getEnv("IMAP_USER", c.IMAP.User)
	c.IMAP.Mechanism = strings.ToUpper(getEnv("IMAP_AUTH_MECHANISM", c.IMAP.Mechanism))
	c.IMAP.Timeout = getEnvDuration("IMAP_TIMEOUT", c.IMAP.Timeout)

	c.TokenStore.Backend = strings.ToLower(getEnv("TOKEN_STORE", c.TokenStore.Backend))
	c.TokenStore.Path = getEnv("TOKEN_CACHE_PATH", c.TokenStore.Path)
	c.TokenStore.KeyringDir = getEnv("KEYRING_DIR", c.TokenStore.KeyringDir)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or a plain number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// ValidateOAuth checks the settings needed to talk to the identity platform.
// The bootstrap utility only needs these.
func (c *Config) ValidateOAuth() error {
	if c.OAuth.ClientID == "" {
		return fmt.Errorf("AZURE_CLIENT_ID is required")
	}
	if c.OAuth.ClientSecret == "" {
		return fmt.Errorf("AZURE_CLIENT_SECRET is required")
	}
	if c.OAuth.TenantID == "" {
		return fmt.Errorf("AZURE_TENANT_ID is required")
	}
	if _, err := url.Parse(c.OAuth.AuthorityHost); err != nil || c.OAuth.AuthorityHost == "" {
		return fmt.Errorf("AUTHORITY_HOST is not a valid URL")
	}
	u, err := url.Parse(c.OAuth.RedirectURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("REDIRECT_URL is not a valid URL")
	}

	switch c.TokenStore.Backend {
	case TokenStoreFile:
		if c.TokenStore.Path == "" {
			return fmt.Errorf("TOKEN_CACHE_PATH is required")
		}
	case TokenStoreKeyring:
	default:
		return fmt.Errorf("TOKEN_STORE must be %q or %q", TokenStoreFile, TokenStoreKeyring)
	}
	return nil
}

// Validate validates the configuration of the MCP server
func (c *Config) Validate() error {
	if err := c.ValidateOAuth(); err != nil {
		return err
	}

	if c.IMAP.Host == "" {
		return fmt.Errorf("IMAP_HOST is required")
	}
	if c.IMAP.User == "" {
		return fmt.Errorf("IMAP_USER is required")
	}
	if c.IMAP.Port < 1 || c.IMAP.Port > 65535 {
		return fmt.Errorf("invalid IMAP_PORT")
	}
	if c.IMAP.Mechanism != MechanismXOAuth2 && c.IMAP.Mechanism != MechanismOAuthBearer {
		return fmt.Errorf("IMAP_AUTH_MECHANISM must be %s or %s", MechanismXOAuth2, MechanismOAuthBearer)
	}
	if c.IMAP.Timeout <= 0 {
		return fmt.Errorf("IMAP_TIMEOUT must be positive")
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("OPERATION_TIMEOUT must be positive")
	}

	return nil
}

// IMAPAddr returns host:port of the mail server
func (c *Config) IMAPAddr() string {
	return fmt.Sprintf("%s:%d", c.IMAP.Host, c.IMAP.Port)
}
