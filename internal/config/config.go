package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	ICEServers []string      `mapstructure:"ice_servers"`

	Stage  StageConfig  `mapstructure:"stage"`
	Signal SignalConfig `mapstructure:"signal"`
}

// StageConfig tunes the per-viewer stage loop.
type StageConfig struct {
	RetryBase     time.Duration `mapstructure:"retry_base"`
	RetryStep     time.Duration `mapstructure:"retry_step"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	InboxSize     int           `mapstructure:"inbox_size"`
}

type SignalConfig struct {
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	MaxDrops     int           `mapstructure:"max_drops"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "spotlight-dev-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})

	v.SetDefault("stage.retry_base", "200ms")
	v.SetDefault("stage.retry_step", "100ms")
	v.SetDefault("stage.retry_attempts", 5)
	v.SetDefault("stage.inbox_size", 256)

	v.SetDefault("signal.rate_limit", 5)
	v.SetDefault("signal.rate_interval", "1s")
	v.SetDefault("signal.send_buffer", 64)
	v.SetDefault("signal.max_drops", 32)
}

// Load reads config/config.<CONFIG_ENV>.yaml, then environment overrides
// (SPOTLIGHT_PORT, SPOTLIGHT_STAGE_RETRY_BASE, ...). A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("spotlight")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Static: %s\n", cfg.Mode, cfg.Port, cfg.StaticPath)
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Stage.RetryAttempts <= 0 {
		return fmt.Errorf("stage.retry_attempts must be positive, got %d", c.Stage.RetryAttempts)
	}
	if c.Stage.RetryBase <= 0 || c.Stage.RetryStep < 0 {
		return fmt.Errorf("invalid stage retry delays %s/%s", c.Stage.RetryBase, c.Stage.RetryStep)
	}
	if c.Signal.RateLimit <= 0 || c.Signal.RateInterval <= 0 {
		return fmt.Errorf("invalid signal rate limit %d per %s", c.Signal.RateLimit, c.Signal.RateInterval)
	}
	return nil
}
