package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. MOCKINTERVIEW_BACKEND_URL.
const EnvPrefix = "MOCKINTERVIEW"

// RootConfig is the on-disk layout: named profiles plus the active one.
type RootConfig struct {
	ActiveConfig string             `mapstructure:"active_config" yaml:"active_config"`
	Configs      map[string]*Config `mapstructure:"configs" yaml:"configs"`
}

type Config struct {
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`

	// Profile that produced this config, for display only
	Profile string `mapstructure:"-" yaml:"-"`
}

type BackendConfig struct {
	URL     string        `mapstructure:"url" yaml:"url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
}

type AudioConfig struct {
	Backend       string        `mapstructure:"backend" yaml:"backend" validate:"oneof=auto ffmpeg file"`
	FFmpegPath    string        `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path" validate:"required"`
	InputFormat   string        `mapstructure:"input_format" yaml:"input_format" validate:"oneof=pulse alsa avfoundation dshow"`
	Device        string        `mapstructure:"device" yaml:"device" validate:"required"`
	File          string        `mapstructure:"file" yaml:"file,omitempty" validate:"required_if=Backend file"`
	ChunkInterval time.Duration `mapstructure:"chunk_interval" yaml:"chunk_interval" validate:"gt=0"`
	Bitrate       int           `mapstructure:"bitrate" yaml:"bitrate" validate:"gt=0"`
	Encodings     []string      `mapstructure:"encodings" yaml:"encodings" validate:"dive,oneof=opus-webm webm wav default"`
}

type HistoryConfig struct {
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	File  string `mapstructure:"file" yaml:"file"`
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Backend: BackendConfig{
			URL:     "http://localhost:8000/api",
			Timeout: 60 * time.Second,
		},
		Audio: AudioConfig{
			Backend:       "auto",
			FFmpegPath:    "ffmpeg",
			InputFormat:   "pulse",
			Device:        "default",
			ChunkInterval: time.Second,
			Bitrate:       128000,
			Encodings:     []string{"opus-webm", "webm", "wav"},
		},
		History: HistoryConfig{
			Path: filepath.Join(home, ".local", "share", "mockinterview", "history.db"),
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(home, ".local", "state", "mockinterview", "mockinterview.log"),
		},
		Profile: "default",
	}
}

// DefaultPath is where the config file lives unless --config says otherwise.
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/mockinterview.yaml")
}

// LoadWithProfile resolves the effective configuration.
// Order of precedence: environment, selected profile, "default" profile, built-ins.
// A missing file is tolerated only when required is false.
func LoadWithProfile(configFile, profile string, required bool) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		rootConfig, err := ReadRootConfig(configFile)
		switch {
		case err == nil:
			resolved, err := resolveProfile(rootConfig, profile)
			if err != nil {
				return nil, err
			}
			cfg = mergeConfigs(cfg, resolved)
			cfg.Profile = resolved.Profile
		case errors.Is(err, os.ErrNotExist) && !required:
			if profile != "" && profile != "default" {
				return nil, fmt.Errorf("configuration profile '%s' not found: no config file at %s", profile, configFile)
			}
		default:
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	cfg.History.Path = expandPath(cfg.History.Path)
	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.Audio.File = expandPath(cfg.Audio.File)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ReadRootConfig parses the config file without resolving profiles.
func ReadRootConfig(configFile string) (*RootConfig, error) {
	if _, err := os.Stat(configFile); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if len(rootConfig.Configs) == 0 {
		return nil, fmt.Errorf("configs section is required in %s", configFile)
	}

	return &rootConfig, nil
}

// resolveProfile picks the requested profile and layers it over "default".
func resolveProfile(rootConfig *RootConfig, profile string) (*Config, error) {
	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selected, exists := rootConfig.Configs[configName]
	if !exists || selected == nil {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	result := selected
	if configName != "default" {
		if base, ok := rootConfig.Configs["default"]; ok && base != nil {
			result = mergeConfigs(base, selected)
		}
	}
	result.Profile = configName

	return result, nil
}

// mergeConfigs layers the non-zero fields of override onto a copy of base.
func mergeConfigs(base, override *Config) *Config {
	result := *base
	result.Audio.Encodings = append([]string(nil), base.Audio.Encodings...)

	if override.Backend.URL != "" {
		result.Backend.URL = override.Backend.URL
	}
	if override.Backend.Timeout != 0 {
		result.Backend.Timeout = override.Backend.Timeout
	}

	if override.Audio.Backend != "" {
		result.Audio.Backend = override.Audio.Backend
	}
	if override.Audio.FFmpegPath != "" {
		result.Audio.FFmpegPath = override.Audio.FFmpegPath
	}
	if override.Audio.InputFormat != "" {
		result.Audio.InputFormat = override.Audio.InputFormat
	}
	if override.Audio.Device != "" {
		result.Audio.Device = override.Audio.Device
	}
	if override.Audio.File != "" {
		result.Audio.File = override.Audio.File
	}
	if override.Audio.ChunkInterval != 0 {
		result.Audio.ChunkInterval = override.Audio.ChunkInterval
	}
	if override.Audio.Bitrate != 0 {
		result.Audio.Bitrate = override.Audio.Bitrate
	}
	if len(override.Audio.Encodings) > 0 {
		result.Audio.Encodings = append([]string(nil), override.Audio.Encodings...)
	}

	if override.History.Path != "" {
		result.History.Path = override.History.Path
	}

	if override.Log.Level != "" {
		result.Log.Level = override.Log.Level
	}
	if override.Log.File != "" {
		result.Log.File = override.Log.File
	}

	return &result
}

// applyEnvOverrides reads MOCKINTERVIEW_* variables for the settings people
// commonly change per shell.
func applyEnvOverrides(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.IsSet("backend.url") {
		cfg.Backend.URL = v.GetString("backend.url")
	}
	if v.IsSet("backend.timeout") {
		cfg.Backend.Timeout = v.GetDuration("backend.timeout")
	}
	if v.IsSet("audio.device") {
		cfg.Audio.Device = v.GetString("audio.device")
	}
	if v.IsSet("audio.backend") {
		cfg.Audio.Backend = v.GetString("audio.backend")
	}
	if v.IsSet("history.path") {
		cfg.History.Path = v.GetString("history.path")
	}
	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
}

// Validate checks struct constraints and reports the first failing field.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return fmt.Errorf("%s: failed '%s' check (value: %v)", fieldPath(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return err
	}
	return nil
}

// fieldPath turns "Config.Audio.ChunkInterval" into "audio.chunkinterval".
func fieldPath(namespace string) string {
	namespace = strings.TrimPrefix(namespace, "Config.")
	return strings.ToLower(namespace)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// UpdateActiveConfig rewrites the active_config field in the config file.
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	rootConfig, err := ReadRootConfig(configFile)
	if err != nil {
		return err
	}
	if _, ok := rootConfig.Configs[newActiveConfig]; !ok {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}
