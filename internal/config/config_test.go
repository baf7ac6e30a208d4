package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Unexpected addr %s", cfg.Server.Addr())
	}
	if cfg.Model.Path != "./model/model.onnx" {
		t.Errorf("Unexpected model path %s", cfg.Model.Path)
	}
	if cfg.Model.PoolSize != 1 {
		t.Errorf("Expected pool size 1, got %d", cfg.Model.PoolSize)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "http://localhost:5173" {
		t.Errorf("Unexpected CORS origins %v", cfg.Server.CORSOrigins)
	}
	if cfg.App.MaxUploadSize != 10<<20 {
		t.Errorf("Unexpected max upload size %d", cfg.App.MaxUploadSize)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Unexpected shutdown timeout %v", cfg.Server.ShutdownTimeout)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MODEL_PATH", "/srv/model.onnx")
	t.Setenv("MODEL_POOL_SIZE", "4")
	t.Setenv("SERVER_CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("SERVER_READ_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Model.Path != "/srv/model.onnx" || cfg.Model.PoolSize != 4 {
		t.Errorf("Unexpected model config %+v", cfg.Model)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://b.test" {
		t.Errorf("Unexpected CORS origins %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Expected 5s read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected lowercased level, got %s", cfg.Log.Level)
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("port", "8080", "")
	flags.String("model", "./model/model.onnx", "")
	if err := flags.Parse([]string{"--port", "7070"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("Expected flag to win, got %s", cfg.Server.Port)
	}
	if cfg.Model.Path != "./model/model.onnx" {
		t.Errorf("Unset flag should not change model path, got %s", cfg.Model.Path)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"MODEL_POOL_SIZE": "0",
		"SERVER_PORT":     "http",
		"LOG_FORMAT":      "xml",
		"APP_MAX_PIXELS":  "1000",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(nil); err == nil {
				t.Errorf("Expected validation error for %s=%s", key, val)
			}
		})
	}
}
