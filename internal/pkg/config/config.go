package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/pingsphere/internal/core/lifecycle"
	"github.com/samirrijal/pingsphere/internal/pkg/geospatial"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Log       LogConfig       `mapstructure:"log"`
	Engine    EngineConfig    `mapstructure:"engine"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr     string `mapstructure:"addr"`
	Prefix   string `mapstructure:"prefix"`
	FrameTTL int    `mapstructure:"frame_ttl"` // seconds
	// ClientCacheMS enables client-side caching of reads; 0 disables it.
	ClientCacheMS int `mapstructure:"client_cache_ms"`
}

type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	TempoAddr   string  `mapstructure:"tempo_addr"`
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	Schedule  string `mapstructure:"schedule"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"` // optional JSON copy of every record
}

// EngineConfig tunes the scene engine: tick rate, ping phase timings and the
// shape of ping arcs.
type EngineConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	Drawing          time.Duration `mapstructure:"drawing"`
	Glowing          time.Duration `mapstructure:"glowing"`
	Fading           time.Duration `mapstructure:"fading"`
	Lifetime         time.Duration `mapstructure:"lifetime"`
	PulsePeriod      time.Duration `mapstructure:"pulse_period"`
	FadeFloor        float64       `mapstructure:"fade_floor"`
	PingColor        string        `mapstructure:"ping_color"`
	PresenceLifetime time.Duration `mapstructure:"presence_lifetime"`
	// Embedded runs the scene engine inside the API process (single-node
	// deployments) instead of reading frames from the shared cache.
	Embedded bool `mapstructure:"embedded"`

	ArcSegments      int     `mapstructure:"arc_segments"`
	ArcRadius        float64 `mapstructure:"arc_radius"`
	ArcMinHeight     float64 `mapstructure:"arc_min_height"`
	ArcMaxHeight     float64 `mapstructure:"arc_max_height"`
	ArcMinDistanceKm float64 `mapstructure:"arc_min_distance_km"`
	ArcMaxDistanceKm float64 `mapstructure:"arc_max_distance_km"`
}

// Lifecycle converts the engine section into a lifecycle.Config.
func (e EngineConfig) Lifecycle() lifecycle.Config {
	return lifecycle.Config{
		Drawing:     e.Drawing,
		Glowing:     e.Glowing,
		Fading:      e.Fading,
		Lifetime:    e.Lifetime,
		PulsePeriod: e.PulsePeriod,
		FadeFloor:   e.FadeFloor,
		PingColor:   e.PingColor,
		Arc: geospatial.ArcConfig{
			Segments:      e.ArcSegments,
			Radius:        e.ArcRadius,
			MinHeight:     e.ArcMinHeight,
			MaxHeight:     e.ArcMaxHeight,
			MinDistanceKm: e.ArcMinDistanceKm,
			MaxDistanceKm: e.ArcMaxDistanceKm,
		},
	}
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: PINGSPHERE_ENGINE_TICK_INTERVAL → engine.tick_interval
	v.SetEnvPrefix("PINGSPHERE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "pingsphere")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "pingsphere")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.prefix", "pingsphere:")
	v.SetDefault("valkey.frame_ttl", 5)
	v.SetDefault("valkey.client_cache_ms", 0)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "pingsphere-retention")
	v.SetDefault("temporal.schedule", "@every 1h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	lc := lifecycle.DefaultConfig()
	v.SetDefault("engine.tick_interval", "50ms")
	v.SetDefault("engine.drawing", lc.Drawing.String())
	v.SetDefault("engine.glowing", lc.Glowing.String())
	v.SetDefault("engine.fading", lc.Fading.String())
	v.SetDefault("engine.lifetime", lc.Lifetime.String())
	v.SetDefault("engine.pulse_period", lc.PulsePeriod.String())
	v.SetDefault("engine.fade_floor", lc.FadeFloor)
	v.SetDefault("engine.ping_color", lc.PingColor)
	v.SetDefault("engine.presence_lifetime", lifecycle.DecayWindow.String())
	v.SetDefault("engine.embedded", false)
	v.SetDefault("engine.arc_segments", lc.Arc.Segments)
	v.SetDefault("engine.arc_radius", lc.Arc.Radius)
	v.SetDefault("engine.arc_min_height", lc.Arc.MinHeight)
	v.SetDefault("engine.arc_max_height", lc.Arc.MaxHeight)
	v.SetDefault("engine.arc_min_distance_km", lc.Arc.MinDistanceKm)
	v.SetDefault("engine.arc_max_distance_km", lc.Arc.MaxDistanceKm)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Valkey.ClientCacheMS < 0 {
		errs = append(errs, "valkey.client_cache_ms must not be negative")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.sample_ratio must be within [0,1], got %v", c.Telemetry.SampleRatio))
	}
	if c.Engine.TickInterval <= 0 {
		errs = append(errs, "engine.tick_interval must be positive")
	}
	if c.Engine.PresenceLifetime <= 0 {
		errs = append(errs, "engine.presence_lifetime must be positive")
	}
	if err := c.Engine.Lifecycle().Validate(); err != nil {
		errs = append(errs, "engine: "+err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
