package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate for settings the service cannot run with.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// ServiceConfig holds the tile collapse service settings.
type ServiceConfig struct {
	HTTP        HTTPConfig        `yaml:"http"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Connections ConnectionsConfig `yaml:"connections"`
	Commands    CommandsConfig    `yaml:"commands"`
	Backoff     BackoffConfig     `yaml:"backoff"`
	Solver      SolverConfig      `yaml:"solver"`
	Database    DatabaseConfig    `yaml:"database"`
	RuleSets    RuleSetsConfig    `yaml:"rulesets"`
}

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Address string `yaml:"address"`

	// RequestTimeoutSeconds bounds REST handlers, including generation.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy. "*" allows all origins.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// ConnectionsConfig limits concurrent interactive sessions.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent sessions from a single IP address.
	// 0 means unlimited.
	MaxPerIP int `yaml:"max_per_ip"`

	// MaxTotal is the maximum total concurrent sessions. 0 means unlimited.
	MaxTotal int `yaml:"max_total"`
}

// CommandsConfig throttles the commands one interactive session may send.
type CommandsConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxCommands is the number of commands allowed per window.
	MaxCommands int `yaml:"max_commands"`

	WindowSeconds int `yaml:"window_seconds"`
}

// BackoffConfig throttles clients whose generation requests keep failing.
type BackoffConfig struct {
	// MaxFailures is the number of failed generations before a lockout.
	MaxFailures int `yaml:"max_failures"`

	// LockoutSeconds is the initial lockout duration.
	LockoutSeconds int `yaml:"lockout_seconds"`

	// MaxLockoutSeconds caps the doubling lockout.
	MaxLockoutSeconds int `yaml:"max_lockout_seconds"`
}

// SolverConfig bounds what clients may ask the solver for.
type SolverConfig struct {
	MaxWidth    int   `yaml:"max_width"`
	MaxHeight   int   `yaml:"max_height"`
	DefaultSeed int64 `yaml:"default_seed"`
	MaxAttempts int   `yaml:"max_attempts"`
}

// DatabaseConfig selects and configures the solution store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres"
	Driver     string         `yaml:"driver"`
	SQLitePath string         `yaml:"sqlite_path"`
	Postgres   PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	User                   string `yaml:"user"`
	Password               string `yaml:"password"`
	Database               string `yaml:"database"`
	SSLMode                string `yaml:"sslmode"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// RuleSetsConfig locates rule set files.
type RuleSetsConfig struct {
	Directory string `yaml:"directory"`
}

// DefaultConfig returns a ServiceConfig with secure defaults.
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		HTTP: HTTPConfig{
			Address:               ":8080",
			RequestTimeoutSeconds: 30,
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: []string{},
			MaxMessageSize: 4096,
		},
		Connections: ConnectionsConfig{
			MaxPerIP: 3,
			MaxTotal: 100,
		},
		Commands: CommandsConfig{
			Enabled:       true,
			MaxCommands:   50,
			WindowSeconds: 10,
		},
		Backoff: BackoffConfig{
			MaxFailures:       5,
			LockoutSeconds:    30,
			MaxLockoutSeconds: 300,
		},
		Solver: SolverConfig{
			MaxWidth:    128,
			MaxHeight:   128,
			MaxAttempts: 10,
		},
		Database: DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: "data/solutions.db",
			Postgres: PostgresConfig{
				Host:                   "localhost",
				Port:                   5432,
				Database:               "tilecollapse",
				SSLMode:                "disable",
				MaxOpenConns:           25,
				MaxIdleConns:           5,
				ConnMaxLifetimeMinutes: 5,
			},
		},
		RuleSets: RuleSetsConfig{
			Directory: "data/rulesets",
		},
	}
}

// LoadConfig loads service configuration from a YAML file and applies
// TILECOLLAPSE_* environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*ServiceConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return DefaultConfig(), fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return config, err
	}

	if err := config.applyEnv(); err != nil {
		return config, err
	}
	return config, nil
}

func (c *ServiceConfig) applyEnv() error {
	strVars := map[string]*string{
		"TILECOLLAPSE_HTTP_ADDR":    &c.HTTP.Address,
		"TILECOLLAPSE_RULESETS_DIR": &c.RuleSets.Directory,
		"TILECOLLAPSE_DB_DRIVER":    &c.Database.Driver,
		"TILECOLLAPSE_DB_PATH":      &c.Database.SQLitePath,
		"TILECOLLAPSE_PG_HOST":      &c.Database.Postgres.Host,
		"TILECOLLAPSE_PG_USER":      &c.Database.Postgres.User,
		"TILECOLLAPSE_PG_PASSWORD":  &c.Database.Postgres.Password,
		"TILECOLLAPSE_PG_DATABASE":  &c.Database.Postgres.Database,
		"TILECOLLAPSE_PG_SSLMODE":   &c.Database.Postgres.SSLMode,
	}
	for name, dst := range strVars {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"TILECOLLAPSE_PG_PORT":    &c.Database.Postgres.Port,
		"TILECOLLAPSE_MAX_WIDTH":  &c.Solver.MaxWidth,
		"TILECOLLAPSE_MAX_HEIGHT": &c.Solver.MaxHeight,
	}
	for name, dst := range intVars {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
	}
	return nil
}

// Validate reports settings that cannot work.
func (c *ServiceConfig) Validate() error {
	if c.HTTP.Address == "" {
		return fmt.Errorf("%w: http.address is empty", ErrInvalidConfig)
	}
	if c.Solver.MaxWidth <= 0 || c.Solver.MaxHeight <= 0 {
		return fmt.Errorf("%w: solver size limits must be positive, got %dx%d",
			ErrInvalidConfig, c.Solver.MaxWidth, c.Solver.MaxHeight)
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "":
	case "postgres":
		if c.Database.Postgres.Host == "" || c.Database.Postgres.Database == "" {
			return fmt.Errorf("%w: postgres requires host and database", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	return nil
}

// AllowsSize reports whether a grid of the given size is within the solver limits.
func (c *SolverConfig) AllowsSize(width, height int) bool {
	return width > 0 && height > 0 && width <= c.MaxWidth && height <= c.MaxHeight
}

// IsOriginAllowed checks if the given origin may open a WebSocket session.
// Returns true if AllowedOrigins contains "*" or the exact origin, or if
// AllowedOrigins is empty and the origin matches the request host.
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// isSameOrigin checks if the origin matches the request host.
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // non-browser client
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
