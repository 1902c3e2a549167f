package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("默认配置应可加载: %v", err)
	}
	if cfg.Window.Size != 8 || cfg.Window.Overlap != 7 {
		t.Fatalf("unexpected window defaults: %+v", cfg.Window)
	}
	if cfg.Window.StartMonth != "2011-01" {
		t.Fatalf("unexpected start month %q", cfg.Window.StartMonth)
	}
	if cfg.Trends.RetryDelay != 61*time.Second || cfg.Trends.Attempts != 10 {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Trends)
	}
	if cfg.App.Workers != 3 {
		t.Fatalf("expected 3 workers, got %d", cfg.App.Workers)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "window:\n  size: 12\n  overlap: 2\ndata:\n  countries: IR,TR\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TRENDWATCH_TRENDS_API_KEY", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Window.Size != 12 || cfg.Window.Overlap != 2 {
		t.Fatalf("file values not applied: %+v", cfg.Window)
	}
	if len(cfg.Data.Countries) != 2 || cfg.Data.Countries[1] != "TR" {
		t.Fatalf("countries not split: %v", cfg.Data.Countries)
	}
	if cfg.Trends.APIKey != "secret" {
		t.Fatalf("env override not applied: %q", cfg.Trends.APIKey)
	}
}

func TestValidateRejectsOverlap(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TRENDWATCH_WINDOW_OVERLAP", "8")

	if _, err := Load(""); err == nil {
		t.Fatal("overlap >= size 应报错")
	}
}

func TestValidateSlackRequiresToken(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TRENDWATCH_SINK_SLACK_ENABLED", "true")

	if _, err := Load(""); err == nil {
		t.Fatal("slack 启用但缺少 token 应报错")
	}
}

func TestResolveWorkers(t *testing.T) {
	cfg := &Config{App: AppConfig{Workers: 3}}
	if got := cfg.ResolveWorkers(0); got != 3 {
		t.Fatalf("expected config default, got %d", got)
	}
	if got := cfg.ResolveWorkers(7); got != 7 {
		t.Fatalf("expected override, got %d", got)
	}
}
