package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Model  ModelConfig
	App    AppConfig
	Log    LogConfig
}

type ServerConfig struct {
	Host            string
	Port            string        `validate:"required,numeric"`
	ReadTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
	CORSOrigins     []string      `validate:"min=1,dive,required"`
}

type ModelConfig struct {
	Path           string `validate:"required"`
	ORTLibrary     string
	PoolSize       int `validate:"min=1,max=64"`
	IntraOpThreads int `validate:"min=0"`
}

type AppConfig struct {
	MaxUploadSize int64 `validate:"gt=0"`
	MaxPixels     int   `validate:"min=90000"`
}

type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
}

// Addr is the listen address for http.Server.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"host":       "server.host",
	"port":       "server.port",
	"model":      "model.path",
	"ort-lib":    "model.ort_library",
	"pool-size":  "model.pool_size",
	"threads":    "model.intra_op_threads",
	"log-level":  "log.level",
	"log-format": "log.format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("model.path", "./model/model.onnx")
	v.SetDefault("model.ort_library", "")
	v.SetDefault("model.pool_size", 1)
	v.SetDefault("model.intra_op_threads", 0)
	v.SetDefault("app.max_upload_size", 10<<20) // 10MB
	v.SetDefault("app.max_pixels", 89_478_485)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads defaults, an optional .env file, the environment (SERVER_PORT,
// MODEL_PATH, ...) and, when flags is not nil, any flags that were set.
// Later sources win.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetString("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			CORSOrigins:     splitList(v.GetStringSlice("server.cors_origins")),
		},
		Model: ModelConfig{
			Path:           v.GetString("model.path"),
			ORTLibrary:     v.GetString("model.ort_library"),
			PoolSize:       v.GetInt("model.pool_size"),
			IntraOpThreads: v.GetInt("model.intra_op_threads"),
		},
		App: AppConfig{
			MaxUploadSize: v.GetInt64("app.max_upload_size"),
			MaxPixels:     v.GetInt("app.max_pixels"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// splitList accepts both repeated values and a single comma separated value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
