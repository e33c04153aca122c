package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Mode selects the deployment flavor the service runs in.
type Mode string

const (
	// ModeDedicated serves a multi-player server fleet: Postgres store,
	// Redis presence, operator/permission-node management checks.
	ModeDedicated Mode = "dedicated"
	// ModeStandalone serves a single local player: SQLite store, in-process
	// presence, management decided by the session capability flag.
	ModeStandalone Mode = "standalone"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App         AppConfig
	Mode        Mode
	Postgres    PostgresConfig
	SQLite      SQLiteConfig
	Redis       RedisConfig
	Logger      LoggerConfig
	Auth        AuthConfig
	Permissions PermissionsConfig
	Stats       StatsConfig
	Notify      NotifyConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values for dedicated mode.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// SQLiteConfig locates the standalone-mode ticket database.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines session-token parameters. BridgeKeyHash is the bcrypt
// hash of the shared key game-server bridges present when opening sessions.
type AuthConfig struct {
	JWTSecret         string
	SessionTTLMinutes int
	BridgeKeyHash     string
}

// PermissionsConfig governs the management check in dedicated mode.
type PermissionsConfig struct {
	Strict           bool
	AdminNode        string
	CasbinModelPath  string
	CasbinPolicyPath string
	Operators        []string
}

// StatsConfig tunes the aggregate computations.
type StatsConfig struct {
	ActiveWindow int
}

// NotifyConfig holds the optional MQTT event-bridge endpoint. An empty
// broker URL disables the bridge.
type NotifyConfig struct {
	MQTTBrokerURL string
	MQTTClientID  string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	mode, err := parseMode(getEnv("SERVER_MODE", string(ModeDedicated)))
	if err != nil {
		return nil, err
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticketd"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Mode: mode,
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "data/tickets.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("AUTH_JWT_SECRET", "dev-secret"),
			SessionTTLMinutes: getEnvAsInt("AUTH_SESSION_TTL_MINUTES", 720),
			BridgeKeyHash:     os.Getenv("AUTH_BRIDGE_KEY_HASH"),
		},
		Permissions: PermissionsConfig{
			Strict:           getEnvAsBool("PERM_STRICT", false),
			AdminNode:        getEnv("PERM_ADMIN_NODE", "ticketd.manage"),
			CasbinModelPath:  getEnv("PERM_CASBIN_MODEL", "configs/casbin/model.conf"),
			CasbinPolicyPath: getEnv("PERM_CASBIN_POLICY", "configs/casbin/policy.csv"),
			Operators:        splitList(os.Getenv("OPERATORS")),
		},
		Stats: StatsConfig{
			ActiveWindow: getEnvAsInt("STATS_ACTIVE_WINDOW", 5),
		},
		Notify: NotifyConfig{
			MQTTBrokerURL: os.Getenv("NOTIFY_MQTT_BROKER_URL"),
			MQTTClientID:  getEnv("NOTIFY_MQTT_CLIENT_ID", "ticketd"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func parseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeDedicated:
		return ModeDedicated, nil
	case ModeStandalone:
		return ModeStandalone, nil
	}
	return "", fmt.Errorf("invalid SERVER_MODE %q (want dedicated or standalone)", raw)
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
