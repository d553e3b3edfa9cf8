package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTPAddr != ":8080" {
		t.Errorf("expected default http addr, got %q", cfg.App.HTTPAddr)
	}
	if cfg.App.TokenTTL != 24*time.Hour {
		t.Errorf("expected default token ttl 24h, got %v", cfg.App.TokenTTL)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("expected default redis addr, got %q", cfg.Redis.Addr)
	}
}

func TestLoad_FileWithDurationString(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"app": {"env": "prod", "token_ttl": "90m", "rate_limit": 2},
		"mysql": {"dsn": "app:pw@tcp(db:3306)/todohub?parseTime=true"},
		"security": {"jwt_secret": "file_secret"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Env != "prod" {
		t.Errorf("expected env from file, got %q", cfg.App.Env)
	}
	if cfg.App.TokenTTL != 90*time.Minute {
		t.Errorf("expected token ttl 90m, got %v", cfg.App.TokenTTL)
	}
	if cfg.Security.JWTSecret != "file_secret" {
		t.Errorf("expected secret from file, got %q", cfg.Security.JWTSecret)
	}
	// 文件缺省的字段回落到默认值
	if cfg.App.HTTPAddr != ":8080" {
		t.Errorf("expected default http addr, got %q", cfg.App.HTTPAddr)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("expected default redis addr, got %q", cfg.Redis.Addr)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"app": {"token_ttl": "soon"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid token_ttl")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_HTTP_ADDR", ":9090")
	t.Setenv("APP_TOKEN_TTL", "30m")
	t.Setenv("JWT_SECRET", "env_secret")
	t.Setenv("REDIS_ADDR", "redis-prod:6379")

	cfg, err := Load(filepath.Join(t.TempDir(), "no-such.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTPAddr != ":9090" {
		t.Errorf("expected env http addr, got %q", cfg.App.HTTPAddr)
	}
	if cfg.App.TokenTTL != 30*time.Minute {
		t.Errorf("expected env token ttl, got %v", cfg.App.TokenTTL)
	}
	if cfg.Security.JWTSecret != "env_secret" {
		t.Errorf("expected env jwt secret, got %q", cfg.Security.JWTSecret)
	}
	if cfg.Redis.Addr != "redis-prod:6379" {
		t.Errorf("expected env redis addr, got %q", cfg.Redis.Addr)
	}
}

func TestLoad_DBPartsOverrideDSN(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_USER", "svc")
	t.Setenv("DB_PASSWORD", "pw123")
	t.Setenv("DB_NAME", "todohub_prod")

	cfg, err := Load(filepath.Join(t.TempDir(), "no-such.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	dsn := cfg.MySQL.DSN
	for _, want := range []string{"db.internal:3307", "svc:", "todohub_prod"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %q", dsn, want)
		}
	}
}

func TestLoad_DBDSNWinsOverParts(t *testing.T) {
	t.Setenv("DB_DSN", "u:p@tcp(raw:3306)/rawdb?parseTime=true")
	t.Setenv("DB_HOST", "ignored")

	cfg, err := Load(filepath.Join(t.TempDir(), "no-such.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MySQL.DSN != "u:p@tcp(raw:3306)/rawdb?parseTime=true" {
		t.Errorf("expected full DSN to win, got %q", cfg.MySQL.DSN)
	}
}
