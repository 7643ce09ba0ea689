package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadConfigDefaultsAndKey(t *testing.T) {
	t.Setenv("CRYPTO_MESSAGE_KEY", testKeyHex)
	path := writeConfigFile(t, "LOG_LEVEL: debug\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level from file, got %q", cfg.LogLevel)
	}
	if cfg.APIServer.Port != "8081" {
		t.Fatalf("expected default api port, got %q", cfg.APIServer.Port)
	}
	if cfg.Storage.MaxMediaFiles != 1 {
		t.Fatalf("expected one media file by default, got %d", cfg.Storage.MaxMediaFiles)
	}
	if cfg.Auth.JWTExpiry != 24*time.Hour {
		t.Fatalf("unexpected jwt expiry %s", cfg.Auth.JWTExpiry)
	}
	if len(cfg.Crypto.MessageKey) != MessageKeySize {
		t.Fatalf("expected decoded %d-byte key, got %d", MessageKeySize, len(cfg.Crypto.MessageKey))
	}
}

func TestLoadConfigEnvOverridesNested(t *testing.T) {
	t.Setenv("CRYPTO_MESSAGE_KEY", testKeyHex)
	t.Setenv("DATABASE_TYPE", "mongo")
	path := writeConfigFile(t, "APP_NAME: test\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.Type != "mongo" {
		t.Fatalf("expected env override for database type, got %q", cfg.Database.Type)
	}
}

func TestLoadConfigMissingKeyIsFatal(t *testing.T) {
	t.Setenv("CRYPTO_MESSAGE_KEY", "")
	path := writeConfigFile(t, "APP_NAME: test\n")

	_, err := LoadConfig(path)
	if !errors.Is(err, ErrMissingMessageKey) {
		t.Fatalf("expected ErrMissingMessageKey, got %v", err)
	}
}

func TestLoadConfigWithoutKeyIgnoresMissingKey(t *testing.T) {
	t.Setenv("CRYPTO_MESSAGE_KEY", "")
	path := writeConfigFile(t, "KAFKA:\n  NOTIFICATIONS_TOPIC: pushes\n")

	cfg, err := LoadConfigWithoutKey(path)
	if err != nil {
		t.Fatalf("LoadConfigWithoutKey failed: %v", err)
	}
	if cfg.Kafka.NotificationsTopic != "pushes" {
		t.Fatalf("expected topic from file, got %q", cfg.Kafka.NotificationsTopic)
	}
	if cfg.Crypto.MessageKey != nil {
		t.Fatalf("message key should not be decoded")
	}
}

func TestDecodeMessageKey(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{name: "valid", in: testKeyHex},
		{name: "surrounding whitespace", in: "  " + testKeyHex + "\n"},
		{name: "empty", in: "", wantErr: ErrMissingMessageKey},
		{name: "not hex", in: strings.Repeat("zz", 32), wantErr: ErrInvalidMessageKey},
		{name: "too short", in: testKeyHex[:32], wantErr: ErrInvalidMessageKey},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, err := DecodeMessageKey(tc.in)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(key) != MessageKeySize {
				t.Fatalf("expected %d bytes, got %d", MessageKeySize, len(key))
			}
		})
	}
}
