package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ALLOWED_ORIGIN", "BACKEND_URL", "SNAPSHOT_PATH", "ACCESS_TOKEN_TTL_MINUTES", "LOW_STOCK_THRESHOLD"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.SnapshotPath != "bms-storage.json" {
		t.Fatalf("expected default snapshot path, got %s", cfg.SnapshotPath)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected default token TTL 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.LowStockThreshold != 5 {
		t.Fatalf("expected default threshold 5, got %d", cfg.LowStockThreshold)
	}
	if cfg.BackendURL != "" {
		t.Fatalf("expected local mode by default, got backend %q", cfg.BackendURL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BACKEND_URL", " https://pos.example.com ")
	t.Setenv("LOW_STOCK_THRESHOLD", "12")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "60")

	cfg := Load()
	if cfg.Port != "9090" || cfg.Address() != ":9090" {
		t.Fatalf("expected port override, got %s / %s", cfg.Port, cfg.Address())
	}
	if cfg.BackendURL != "https://pos.example.com" {
		t.Fatalf("expected trimmed backend url, got %q", cfg.BackendURL)
	}
	if cfg.LowStockThreshold != 12 || cfg.AccessTokenTTLMinutes != 60 {
		t.Fatalf("expected numeric overrides, got %d / %d", cfg.LowStockThreshold, cfg.AccessTokenTTLMinutes)
	}
}

func TestLoad_BadNumbersFallBack(t *testing.T) {
	t.Setenv("LOW_STOCK_THRESHOLD", "many")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")

	cfg := Load()
	if cfg.LowStockThreshold != 5 {
		t.Fatalf("expected fallback threshold 5, got %d", cfg.LowStockThreshold)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected fallback TTL 480, got %d", cfg.AccessTokenTTLMinutes)
	}
}
