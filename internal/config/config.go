package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Cron      CronConfig      `mapstructure:"cron"`
	Airbyte   AirbyteConfig   `mapstructure:"airbyte"`
	Metabase  MetabaseConfig  `mapstructure:"metabase"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Cache     CacheConfig     `mapstructure:"cache"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Security  SecurityConfig  `mapstructure:"security"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

// Production reports whether error details should be hidden from clients.
func (c AppConfig) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production") || strings.EqualFold(strings.TrimSpace(c.Env), "prod")
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SyncPoll string `mapstructure:"sync_poll"`
}

type AirbyteConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	ClientID      string        `mapstructure:"client_id"`
	ClientSecret  string        `mapstructure:"client_secret"`
	WorkspaceID   string        `mapstructure:"workspace_id"`
	DestinationID string        `mapstructure:"destination_id"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type MetabaseConfig struct {
	SiteURL    string        `mapstructure:"site_url"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	SecretKey  string        `mapstructure:"secret_key"`
	DatabaseID int           `mapstructure:"database_id"`
	EmbedTTL   time.Duration `mapstructure:"embed_ttl"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int64         `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type AuthConfig struct {
	BearerToken string `mapstructure:"bearer_token"`
}

// SecurityConfig holds the keys that seal secret source configuration
// fields at rest. An empty ConfigKey stores them as given.
type SecurityConfig struct {
	ConfigKey         string `mapstructure:"config_encryption_key"`
	PreviousConfigKey string `mapstructure:"config_encryption_prev_key"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":3000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.sync_poll", "@every 5m")

	v.SetDefault("airbyte.base_url", "https://api.airbyte.com/v1")
	v.SetDefault("airbyte.client_id", "")
	v.SetDefault("airbyte.client_secret", "")
	v.SetDefault("airbyte.workspace_id", "")
	v.SetDefault("airbyte.destination_id", "")
	v.SetDefault("airbyte.timeout", "30s")

	v.SetDefault("metabase.site_url", "http://localhost:3001")
	v.SetDefault("metabase.username", "")
	v.SetDefault("metabase.password", "")
	v.SetDefault("metabase.secret_key", "")
	v.SetDefault("metabase.database_id", 2)
	v.SetDefault("metabase.embed_ttl", "10m")
	v.SetDefault("metabase.timeout", "15s")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	// blank base_url and model take the provider's defaults
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", 0.5)
	v.SetDefault("llm.max_tokens", 1500)
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "15m")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.redis_prefix", "datagage")

	v.SetDefault("cors.allowed_origins", []string{
		"http://localhost:8080",
		"http://localhost:3000",
		"http://localhost:5173",
	})

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "15m")

	v.SetDefault("auth.bearer_token", "")
	v.SetDefault("security.config_encryption_key", "")
	v.SetDefault("security.config_encryption_prev_key", "")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.CORS.AllowedOrigins = splitOrigins(cfg.CORS.AllowedOrigins)

	return cfg, nil
}

// splitOrigins accepts both a YAML list and a comma separated env value.
func splitOrigins(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
