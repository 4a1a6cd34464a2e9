package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultScanThreshold is the live-row estimate at or below which the
// largest-buckets scan runs without confirmation.
const DefaultScanThreshold = 1000

// Config represents the root configuration structure
type Config struct {
	Connection     ConnectionConfig `mapstructure:"connection"`
	Projects       []ProjectConfig  `mapstructure:"projects"`
	DefaultProject string           `mapstructure:"default_project"`
	Storage        StorageConfig    `mapstructure:"storage"`
	UI             UIConfig         `mapstructure:"ui"`
	Server         ServerConfig     `mapstructure:"server"`
	History        HistoryConfig    `mapstructure:"history"`
	LogFile        string           `mapstructure:"log_file"`
	Debug          bool             `mapstructure:"debug"`
}

// ConnectionConfig holds the parameters of the default project's database.
type ConnectionConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	PasswordCommand string `mapstructure:"password_command"`
	SSLMode         string `mapstructure:"sslmode"`
	PoolMaxConns    int    `mapstructure:"pool_max_conns"`
	PoolMinConns    int    `mapstructure:"pool_min_conns"`
}

// ConnectionString renders the connection as a postgres:// URL without a
// password. The password is resolved when the pool is opened.
func (c ConnectionConfig) ConnectionString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.User(c.User),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	q.Set("pool_max_conns", strconv.Itoa(c.PoolMaxConns))
	q.Set("pool_min_conns", strconv.Itoa(c.PoolMinConns))
	u.RawQuery = q.Encode()
	return u.String()
}

// ProjectConfig names one project and how to reach its database.
type ProjectConfig struct {
	Ref              string `mapstructure:"ref" yaml:"ref"`
	ConnectionString string `mapstructure:"connection_string" yaml:"connection_string"`
	PasswordCommand  string `mapstructure:"password_command" yaml:"password_command"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	// SizeLimitScanThreshold is the estimated bucket count at or below which
	// the largest-size-limit scan may run without confirmation.
	SizeLimitScanThreshold int64 `mapstructure:"size_limit_scan_threshold"`
}

// UIConfig holds user interface preferences
type UIConfig struct {
	Theme           string        `mapstructure:"theme"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	DateFormat      string        `mapstructure:"date_format"`
}

// ServerConfig configures `studio serve`.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// HistoryConfig configures the local SQL execution history.
type HistoryConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// Project returns the configuration for ref. An empty ref selects the
// default project.
func (c *Config) Project(ref string) (ProjectConfig, bool) {
	if ref == "" {
		ref = c.DefaultProject
	}
	for _, p := range c.Projects {
		if p.Ref == ref {
			return p, true
		}
	}
	return ProjectConfig{}, false
}

// ProjectRefs returns the configured project refs in file order.
func (c *Config) ProjectRefs() []string {
	refs := make([]string, 0, len(c.Projects))
	for _, p := range c.Projects {
		refs = append(refs, p.Ref)
	}
	return refs
}

// Dir returns the directory holding config, logs and history.
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.TempDir()
	}
	return filepath.Join(homeDir, ".config", "studio")
}

// LoadConfig loads configuration from the default locations.
func LoadConfig() (*Config, error) {
	return LoadConfigFromPath("")
}

// LoadConfigFromPath loads configuration from path, or from
// ~/.config/studio/config.yaml and ./config.yaml when path is empty.
// Environment variables prefixed with STUDIO_ override file values.
func LoadConfigFromPath(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("STUDIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config.synthesizeDefaultProject()

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// synthesizeDefaultProject adds the default project from the connection
// section when the projects list does not name it.
func (c *Config) synthesizeDefaultProject() {
	if _, ok := c.Project(c.DefaultProject); ok {
		return
	}
	c.Projects = append(c.Projects, ProjectConfig{
		Ref:              c.DefaultProject,
		ConnectionString: c.Connection.ConnectionString(),
		PasswordCommand:  c.Connection.PasswordCommand,
	})
}

// ValidateConfig validates the configuration values
func ValidateConfig(cfg *Config) error {
	if cfg.Connection.Host == "" {
		return fmt.Errorf("connection.host cannot be empty")
	}
	if cfg.Connection.Port < 1 || cfg.Connection.Port > 65535 {
		return fmt.Errorf("connection.port must be between 1 and 65535, got %d", cfg.Connection.Port)
	}
	if cfg.Connection.Database == "" {
		return fmt.Errorf("connection.database cannot be empty")
	}

	validSSLModes := []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, cfg.Connection.SSLMode) {
		return fmt.Errorf("connection.sslmode must be one of: %v, got %s", validSSLModes, cfg.Connection.SSLMode)
	}

	if cfg.Connection.PoolMaxConns < 1 {
		return fmt.Errorf("connection.pool_max_conns must be >= 1, got %d", cfg.Connection.PoolMaxConns)
	}
	if cfg.Connection.PoolMinConns < 0 {
		return fmt.Errorf("connection.pool_min_conns must be >= 0, got %d", cfg.Connection.PoolMinConns)
	}
	if cfg.Connection.PoolMaxConns < cfg.Connection.PoolMinConns {
		return fmt.Errorf("connection.pool_max_conns (%d) must be >= pool_min_conns (%d)",
			cfg.Connection.PoolMaxConns, cfg.Connection.PoolMinConns)
	}

	seen := make(map[string]bool, len(cfg.Projects))
	for i, p := range cfg.Projects {
		if p.Ref == "" {
			return fmt.Errorf("projects[%d].ref cannot be empty", i)
		}
		if seen[p.Ref] {
			return fmt.Errorf("projects[%d].ref %q is duplicated", i, p.Ref)
		}
		seen[p.Ref] = true
		if p.ConnectionString == "" {
			return fmt.Errorf("projects[%d].connection_string cannot be empty", i)
		}
	}

	if cfg.Storage.SizeLimitScanThreshold < 0 {
		return fmt.Errorf("storage.size_limit_scan_threshold must be >= 0, got %d", cfg.Storage.SizeLimitScanThreshold)
	}

	validThemes := []string{"dark", "light"}
	if !slices.Contains(validThemes, cfg.UI.Theme) {
		return fmt.Errorf("ui.theme must be one of: %v, got %s", validThemes, cfg.UI.Theme)
	}
	if cfg.UI.RefreshInterval < 100*time.Millisecond || cfg.UI.RefreshInterval > 60*time.Second {
		return fmt.Errorf("ui.refresh_interval must be between 100ms and 60s, got %v", cfg.UI.RefreshInterval)
	}

	if cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen cannot be empty")
	}
	if cfg.History.Enabled && cfg.History.MaxEntries < 1 {
		return fmt.Errorf("history.max_entries must be >= 1, got %d", cfg.History.MaxEntries)
	}

	return nil
}

// applyDefaults sets default configuration values
func applyDefaults(v *viper.Viper) {
	v.SetDefault("connection.host", "localhost")
	v.SetDefault("connection.port", 5432)
	v.SetDefault("connection.database", "postgres")

	if user := os.Getenv("USER"); user != "" {
		v.SetDefault("connection.user", user)
	} else {
		v.SetDefault("connection.user", "postgres")
	}

	v.SetDefault("connection.sslmode", "prefer")
	v.SetDefault("connection.pool_max_conns", 10)
	v.SetDefault("connection.pool_min_conns", 0)

	v.SetDefault("default_project", "default")

	v.SetDefault("storage.size_limit_scan_threshold", DefaultScanThreshold)

	v.SetDefault("ui.theme", "dark")
	v.SetDefault("ui.refresh_interval", "1s")
	v.SetDefault("ui.date_format", "2006-01-02 15:04:05")

	v.SetDefault("server.listen", "127.0.0.1:8787")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", filepath.Join(Dir(), "history.db"))
	v.SetDefault("history.max_entries", 1000)

	v.SetDefault("log_file", "")
	v.SetDefault("debug", false)
}
