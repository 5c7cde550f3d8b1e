package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. PHOTOQUIZ_REDIS_ADDR.
const EnvPrefix = "PHOTOQUIZ"

type Config struct {
	Server struct {
		Port      string `mapstructure:"port"`
		Bind      string `mapstructure:"bind"`
		PublicURL string `mapstructure:"public_url"`
		Verbose   bool   `mapstructure:"verbose"`
	} `mapstructure:"server"`
	Redis struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"redis"`
	Postgres struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"postgres"`
	Quiz struct {
		Source        string        `mapstructure:"source"`
		ImageDir      string        `mapstructure:"image_dir"`
		TTL           time.Duration `mapstructure:"ttl"`
		SessionTTL    time.Duration `mapstructure:"session_ttl"`
		Size          int           `mapstructure:"size"`
		QuestionTime  time.Duration `mapstructure:"question_time"`
		FeedbackDwell time.Duration `mapstructure:"feedback_dwell"`
		Grace         time.Duration `mapstructure:"grace"`
		Tick          time.Duration `mapstructure:"tick"`
	} `mapstructure:"quiz"`
	Telegram struct {
		Token string `mapstructure:"token"`
		Debug bool   `mapstructure:"debug"`
	} `mapstructure:"telegram"`
}

// setDefaults registers every key so AutomaticEnv can override keys the file omits.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.bind", "0.0.0.0")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.verbose", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "10m")
	v.SetDefault("postgres.url", "")
	v.SetDefault("quiz.source", "quiz_data.csv")
	v.SetDefault("quiz.image_dir", "images")
	v.SetDefault("quiz.ttl", "10m")
	v.SetDefault("quiz.session_ttl", "30m")
	v.SetDefault("quiz.size", 10)
	v.SetDefault("quiz.question_time", "10s")
	v.SetDefault("quiz.feedback_dwell", "1500ms")
	v.SetDefault("quiz.grace", "0s")
	v.SetDefault("quiz.tick", "200ms")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.debug", false)
}

// Load reads YAML config from path, then applies PHOTOQUIZ_* environment
// overrides. A missing file leaves defaults and environment in effect.
func Load(path string) (Config, error) {
	cfg := Config{}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}
