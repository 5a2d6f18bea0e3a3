package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/chatrelay/internal/adapters/rtc"
	"github.com/dkeye/chatrelay/internal/app"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type StoreConfig struct {
	DSN     string        `mapstructure:"dsn"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type PresenceConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

type LimitsConfig struct {
	Message  app.Quota `mapstructure:"message"`
	Typing   app.Quota `mapstructure:"typing"`
	Mutation app.Quota `mapstructure:"mutation"`
	Receipt  app.Quota `mapstructure:"receipt"`
}

func (l LimitsConfig) Quotas() map[app.Category]app.Quota {
	return map[app.Category]app.Quota{
		app.CategoryMessage:  l.Message,
		app.CategoryTyping:   l.Typing,
		app.CategoryMutation: l.Mutation,
		app.CategoryReceipt:  l.Receipt,
	}
}

type Config struct {
	Mode         string          `mapstructure:"mode"`
	Port         int             `mapstructure:"port"`
	StaticPath   string          `mapstructure:"static_path"`
	Secret       string          `mapstructure:"secret"`
	SystemToken  string          `mapstructure:"system_token"`
	ReadLimit    int64           `mapstructure:"read_limit"`
	PingPeriod   time.Duration   `mapstructure:"ping_period"`
	PongWait     time.Duration   `mapstructure:"pong_wait"`
	WriteWait    time.Duration   `mapstructure:"write_wait"`
	SendBuffer   int             `mapstructure:"send_buffer"`
	FrameRate    float64         `mapstructure:"frame_rate"`
	FrameBurst   int             `mapstructure:"frame_burst"`
	// Backpressure is "kick" or "drop".
	Backpressure string          `mapstructure:"backpressure"`
	Store        StoreConfig     `mapstructure:"store"`
	Auth         AuthConfig      `mapstructure:"auth"`
	Presence     PresenceConfig  `mapstructure:"presence"`
	Limits       LimitsConfig    `mapstructure:"limits"`
	ICEServers   []rtc.ICEServer `mapstructure:"ice_servers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "")
	v.SetDefault("secret", "")
	v.SetDefault("system_token", "")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("frame_rate", 50)
	v.SetDefault("frame_burst", 100)
	v.SetDefault("backpressure", "kick")
	v.SetDefault("store.dsn", "relay.db")
	v.SetDefault("store.timeout", "5s")
	v.SetDefault("auth.cache_size", 1024)
	v.SetDefault("auth.cache_ttl", "30s")
	v.SetDefault("presence.debounce", "1s")

	for cat, q := range app.DefaultQuotas() {
		key := "limits." + string(cat)
		v.SetDefault(key+".points", q.Points)
		v.SetDefault(key+".window", q.Window.String())
		v.SetDefault(key+".block", q.Block.String())
	}

	var ice []map[string]any
	for _, s := range rtc.DefaultICEServers() {
		ice = append(ice, map[string]any{"urls": s.URLs})
	}
	v.SetDefault("ice_servers", ice)
}

// Load reads config/config.<CONFIG_ENV>.yaml, then RELAY_* environment
// variables. An optional .env file is loaded into the environment first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Info().Str("module", "config").Msg("loaded .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("store", cfg.Store.DSN).Msg("config ready")
	return &cfg, nil
}
