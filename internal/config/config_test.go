package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMergeConfigs_ProfileOverridesBase(t *testing.T) {
	base := Default()

	profile := &Config{
		Backend: BackendConfig{
			URL: "https://interviews.example.com/api",
		},
		Audio: AudioConfig{
			Device:    "alsa_input.usb-mic",
			Encodings: []string{"wav"},
		},
	}

	result := mergeConfigs(base, profile)

	if result.Backend.URL != "https://interviews.example.com/api" {
		t.Errorf("Expected overridden backend URL, got %s", result.Backend.URL)
	}
	if result.Backend.Timeout != 60*time.Second {
		t.Errorf("Expected inherited timeout 60s, got %v", result.Backend.Timeout)
	}
	if result.Audio.Device != "alsa_input.usb-mic" {
		t.Errorf("Expected overridden device, got %s", result.Audio.Device)
	}
	if result.Audio.InputFormat != "pulse" {
		t.Errorf("Expected inherited input format 'pulse', got %s", result.Audio.InputFormat)
	}
	if len(result.Audio.Encodings) != 1 || result.Audio.Encodings[0] != "wav" {
		t.Errorf("Expected encodings [wav], got %v", result.Audio.Encodings)
	}
}

func TestMergeConfigs_EmptyProfile(t *testing.T) {
	base := Default()
	result := mergeConfigs(base, &Config{})

	if result.Backend.URL != base.Backend.URL {
		t.Errorf("Expected base URL %s, got %s", base.Backend.URL, result.Backend.URL)
	}
	if result.Audio.ChunkInterval != time.Second {
		t.Errorf("Expected chunk interval 1s, got %v", result.Audio.ChunkInterval)
	}
	if len(result.Audio.Encodings) != 3 {
		t.Errorf("Expected 3 encodings, got %v", result.Audio.Encodings)
	}
}

func TestMergeConfigs_DoesNotAliasBase(t *testing.T) {
	base := Default()
	result := mergeConfigs(base, &Config{})
	result.Audio.Encodings[0] = "wav"

	if base.Audio.Encodings[0] != "opus-webm" {
		t.Errorf("Expected base encodings untouched, got %v", base.Audio.Encodings)
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/.local/share/mockinterview/history.db", filepath.Join(homeDir, ".local", "share", "mockinterview", "history.db")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~", "~"},
	}

	for _, test := range tests {
		result := expandPath(test.input)
		if result != test.expected {
			t.Errorf("expandPath(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestLoadWithProfile_MissingOptionalFile(t *testing.T) {
	cfg, err := LoadWithProfile(filepath.Join(t.TempDir(), "absent.yaml"), "", false)
	if err != nil {
		t.Fatalf("Expected defaults for missing optional file, got: %v", err)
	}
	if cfg.Backend.URL != "http://localhost:8000/api" {
		t.Errorf("Expected default backend URL, got %s", cfg.Backend.URL)
	}
	if cfg.Profile != "default" {
		t.Errorf("Expected profile 'default', got %s", cfg.Profile)
	}
}

func TestLoadWithProfile_MissingRequiredFile(t *testing.T) {
	_, err := LoadWithProfile(filepath.Join(t.TempDir(), "absent.yaml"), "", true)
	if err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
	if !strings.Contains(err.Error(), "error reading config file") {
		t.Errorf("Expected 'error reading config file', got: %v", err)
	}
}

func TestLoadWithProfile_EnvOverride(t *testing.T) {
	t.Setenv("MOCKINTERVIEW_BACKEND_URL", "http://127.0.0.1:9999/api")
	t.Setenv("MOCKINTERVIEW_LOG_LEVEL", "debug")

	cfg, err := LoadWithProfile("", "", false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Backend.URL != "http://127.0.0.1:9999/api" {
		t.Errorf("Expected env backend URL, got %s", cfg.Backend.URL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected env log level 'debug', got %s", cfg.Log.Level)
	}
}
