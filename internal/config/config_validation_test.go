package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadWithProfile_ActiveConfig(t *testing.T) {
	validConfig := `
active_config: remote

configs:
  default:
    backend:
      url: http://localhost:8000/api
      timeout: 30s
    audio:
      device: default
      chunk_interval: 500ms
    history:
      path: ~/interviews/history.db

  remote:
    backend:
      url: https://interviews.example.com/api
    audio:
      encodings:
        - wav
`

	configFile := createTempConfig(t, validConfig)
	defer os.Remove(configFile)

	cfg, err := LoadWithProfile(configFile, "", true)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Profile != "remote" {
		t.Errorf("Expected profile 'remote', got %s", cfg.Profile)
	}
	if cfg.Backend.URL != "https://interviews.example.com/api" {
		t.Errorf("Expected remote URL, got %s", cfg.Backend.URL)
	}
	if cfg.Backend.Timeout != 30*time.Second {
		t.Errorf("Expected timeout inherited from default profile (30s), got %v", cfg.Backend.Timeout)
	}
	if cfg.Audio.ChunkInterval != 500*time.Millisecond {
		t.Errorf("Expected chunk interval 500ms, got %v", cfg.Audio.ChunkInterval)
	}
	if cfg.Audio.Bitrate != 128000 {
		t.Errorf("Expected built-in bitrate 128000, got %d", cfg.Audio.Bitrate)
	}
	if strings.HasPrefix(cfg.History.Path, "~") {
		t.Errorf("Expected expanded history path, got %s", cfg.History.Path)
	}
	if len(cfg.Audio.Encodings) != 1 || cfg.Audio.Encodings[0] != "wav" {
		t.Errorf("Expected encodings [wav], got %v", cfg.Audio.Encodings)
	}
}

func TestLoadWithProfile_FlagOverridesActiveConfig(t *testing.T) {
	validConfig := `
active_config: remote
configs:
  default:
    backend:
      url: http://localhost:8000/api
  remote:
    backend:
      url: https://interviews.example.com/api
`

	configFile := createTempConfig(t, validConfig)
	defer os.Remove(configFile)

	cfg, err := LoadWithProfile(configFile, "default", true)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Backend.URL != "http://localhost:8000/api" {
		t.Errorf("Expected default profile URL, got %s", cfg.Backend.URL)
	}
}

func TestLoadWithProfile_UnknownProfile(t *testing.T) {
	validConfig := `
configs:
  default:
    backend:
      url: http://localhost:8000/api
`

	configFile := createTempConfig(t, validConfig)
	defer os.Remove(configFile)

	_, err := LoadWithProfile(configFile, "staging", true)
	if err == nil {
		t.Fatal("Expected error for unknown profile")
	}
	if !strings.Contains(err.Error(), "configuration profile 'staging' not found") {
		t.Errorf("Expected profile not found error, got: %v", err)
	}
}

func TestLoadWithProfile_MissingConfigsSection(t *testing.T) {
	configFile := createTempConfig(t, "active_config: default\n")
	defer os.Remove(configFile)

	_, err := LoadWithProfile(configFile, "", true)
	if err == nil {
		t.Fatal("Expected error for missing configs section")
	}
	if !strings.Contains(err.Error(), "configs section is required") {
		t.Errorf("Expected 'configs section is required', got: %v", err)
	}
}

func TestLoadWithProfile_InvalidValues(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name: "bad backend url",
			content: `
configs:
  default:
    backend:
      url: not a url
`,
			expected: "backend.url",
		},
		{
			name: "unknown audio backend",
			content: `
configs:
  default:
    audio:
      backend: coreaudio
`,
			expected: "audio.backend",
		},
		{
			name: "file backend without file",
			content: `
configs:
  default:
    audio:
      backend: file
`,
			expected: "audio.file",
		},
		{
			name: "unknown encoding",
			content: `
configs:
  default:
    audio:
      encodings: [mp3]
`,
			expected: "audio.encodings",
		},
		{
			name: "bad log level",
			content: `
configs:
  default:
    log:
      level: loud
`,
			expected: "log.level",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			configFile := createTempConfig(t, test.content)
			defer os.Remove(configFile)

			_, err := LoadWithProfile(configFile, "", true)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), test.expected) {
				t.Errorf("Expected error mentioning %q, got: %v", test.expected, err)
			}
		})
	}
}

func TestUpdateActiveConfig(t *testing.T) {
	validConfig := `
active_config: default
configs:
  default:
    backend:
      url: http://localhost:8000/api
  remote:
    backend:
      url: https://interviews.example.com/api
`

	configFile := createTempConfig(t, validConfig)
	defer os.Remove(configFile)

	if err := UpdateActiveConfig(configFile, "remote"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	rootConfig, err := ReadRootConfig(configFile)
	if err != nil {
		t.Fatalf("Expected no error re-reading config, got: %v", err)
	}
	if rootConfig.ActiveConfig != "remote" {
		t.Errorf("Expected active_config 'remote', got %s", rootConfig.ActiveConfig)
	}

	if err := UpdateActiveConfig(configFile, "missing"); err == nil {
		t.Error("Expected error for unknown profile")
	}
}

// Helper function to create temporary config file for testing
func createTempConfig(t *testing.T, content string) string {
	tmpfile, err := os.CreateTemp("", "mockinterview-test-*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}

	if err := tmpfile.Close(); err != nil {
		t.Fatalf("Failed to close temp file: %v", err)
	}

	return tmpfile.Name()
}
