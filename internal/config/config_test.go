package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Make sure stray environment does not leak into the assertions.
	for _, key := range []string{
		"SERVER_PORT", "LOG_LEVEL", "JWT_EXPIRY_HOURS", "MAX_DB_CONNS", "ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("JWTExpiry = %v", cfg.JWTExpiry)
	}
	if cfg.MaxDBConns != 16 {
		t.Errorf("MaxDBConns = %d", cfg.MaxDBConns)
	}
	if cfg.AllowedOrigins != nil {
		t.Errorf("AllowedOrigins = %v, want nil (allow all)", cfg.AllowedOrigins)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("JWT_EXPIRY_HOURS", "2")
	t.Setenv("MAX_DB_CONNS", "not-a-number") // falls back to default

	cfg := Load()

	if cfg.ServerPort != "9000" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.JWTExpiry != 2*time.Hour {
		t.Errorf("JWTExpiry = %v", cfg.JWTExpiry)
	}
	if cfg.MaxDBConns != 16 {
		t.Errorf("MaxDBConns = %d, want fallback 16", cfg.MaxDBConns)
	}
}

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty means allow all", "", nil},
		{"single", "https://skolara.sch.id", []string{"https://skolara.sch.id"}},
		{
			"multiple with spaces",
			"https://a.example, https://b.example ,https://c.example",
			[]string{"https://a.example", "https://b.example", "https://c.example"},
		},
		{"trailing comma", "https://a.example,", []string{"https://a.example"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseOrigins(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseOrigins(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.DraftAnswersKey("mat-1", 7); got != "student:7:material:mat-1:answers" {
		t.Errorf("DraftAnswersKey = %q", got)
	}
	if got := CacheKey.DraftStartKey("mat-1", 7); got != "student:7:material:mat-1:start_time" {
		t.Errorf("DraftStartKey = %q", got)
	}
	if got := CacheKey.MaterialMonitorChannel("mat-1"); got != "material:mat-1:monitor" {
		t.Errorf("MaterialMonitorChannel = %q", got)
	}
}
