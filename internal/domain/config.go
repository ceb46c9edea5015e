package domain

import "time"

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines backing-store selection
	Tier Tier `json:"tier"`

	// Component configurations
	Velocity  VelocityConfig  `json:"velocity"`
	RuleStore RuleStoreConfig `json:"ruleStore"`
	EventBus  EventBusConfig  `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// VelocityConfig selects and tunes the velocity tracker backend.
type VelocityConfig struct {
	// Backend is "memory" or "redis"
	Backend string `json:"backend"`

	// MaxWindow bounds how far back any velocity query may reach;
	// entries older than this are pruned.
	MaxWindow time.Duration `json:"maxWindow"`

	// Redis settings (Pro tier)
	RedisAddr     string `json:"redisAddr"`
	RedisPassword string `json:"-"`
	RedisDB       int    `json:"redisDb"`
}

// RuleStoreConfig holds configuration for the custom-rule store.
type RuleStoreConfig struct {
	// Driver is "sqlite" or "postgres"
	Driver string `json:"driver"`

	// SQLite settings (Community tier)
	SQLitePath string `json:"sqlitePath"`

	// PostgreSQL settings (Pro tier)
	PostgresHost     string `json:"postgresHost"`
	PostgresPort     int    `json:"postgresPort"`
	PostgresDB       string `json:"postgresDb"`
	PostgresUser     string `json:"postgresUser"`
	PostgresPassword string `json:"-"`
	PostgresSSLMode  string `json:"postgresSslMode"`

	MaxOpenConns int `json:"maxOpenConns"`
	MaxIdleConns int `json:"maxIdleConns"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with in-memory velocity, SQLite rules
	// and a channel bus.
	TierCommunity Tier = "community"

	// TierPro is the paid tier with Redis velocity, PostgreSQL rules and NATS.
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Velocity: VelocityConfig{
			Backend:   "memory",
			MaxWindow: time.Hour,
		},
		RuleStore: RuleStoreConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Velocity = VelocityConfig{
		Backend:   "redis",
		MaxWindow: time.Hour,
		RedisAddr: "localhost:6379",
	}
	cfg.RuleStore = RuleStoreConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
