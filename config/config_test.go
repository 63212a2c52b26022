package config

import (
	"errors"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret-key")
	t.Setenv("APP_NAME", "TestNotes")
	t.Setenv("LISTEN_PORT", "9090")
	t.Setenv("MAX_UPLOAD_SIZE", "1024")
	t.Setenv("RESET_TOKEN_MAX_AGE", "600")

	if err := Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if AppConfig.AppName != "TestNotes" {
		t.Errorf("Expected AppName 'TestNotes', got '%s'", AppConfig.AppName)
	}
	if AppConfig.ListenPort != 9090 {
		t.Errorf("Expected ListenPort 9090, got %d", AppConfig.ListenPort)
	}
	if AppConfig.MaxUploadSize != 1024 {
		t.Errorf("Expected MaxUploadSize 1024, got %d", AppConfig.MaxUploadSize)
	}
	if AppConfig.ResetTokenMaxAge != 600 {
		t.Errorf("Expected ResetTokenMaxAge 600, got %d", AppConfig.ResetTokenMaxAge)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret-key")
	t.Setenv("APP_NAME", "")
	t.Setenv("LISTEN_PORT", "")
	t.Setenv("DB_PATH", "")

	if err := Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if AppConfig.ListenPort != 8080 {
		t.Errorf("Expected default port 8080, got %d", AppConfig.ListenPort)
	}
	if AppConfig.DBPath != "./devnotes.db" {
		t.Errorf("Expected default DB path, got '%s'", AppConfig.DBPath)
	}
}

func TestLoadMissingSecretKey(t *testing.T) {
	t.Setenv("SECRET_KEY", "")

	err := Load()
	if !errors.Is(err, ErrMissingSecretKey) {
		t.Errorf("Expected ErrMissingSecretKey, got %v", err)
	}
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret-key")
	t.Setenv("LISTEN_PORT", "not-a-number")

	if err := Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if AppConfig.ListenPort != 8080 {
		t.Errorf("Expected fallback port 8080, got %d", AppConfig.ListenPort)
	}
}
