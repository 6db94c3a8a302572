package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/audiolibrelab/mockinterview/internal/config"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "mockinterview [topic]",
	Short: "Practice spoken technical interviews from the terminal",
	Long: `mockinterview asks you interview questions, records your spoken answers
from the microphone and sends them to a grading backend for transcription
and feedback. Every question, answer and piece of feedback is kept in a
local history log.

When a topic is provided, it acts as 'mockinterview interview [topic]'.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// An explicit --config must exist; the default location is optional
		required := cfgFile != ""
		if cfgFile == "" {
			cfgFile = config.DefaultPath()
		}

		var err error
		cfg, err = config.LoadWithProfile(cfgFile, profile, required)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// The interview screen owns the terminal, so it only logs to the file
		setupLogging(verboseLevel, cfg.Log, !isInteractive(cmd, args))

		slog.Debug("Configuration loaded", "file", cfgFile, "profile", cfg.Profile)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return interviewCmd.RunE(cmd, args)
		}
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/mockinterview.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=config level, 1=debug, 2=debug with ffmpeg output")

	rootCmd.Flags().String("backend-url", "", "grading backend URL (overrides config)")

	rootCmd.AddCommand(interviewCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// isInteractive reports whether cmd runs the full screen interview.
func isInteractive(cmd *cobra.Command, args []string) bool {
	if !cmd.HasParent() {
		return len(args) == 1
	}
	if cmd.Name() != "interview" {
		return false
	}
	headless, _ := cmd.Flags().GetBool("headless")
	return !headless
}

// setupLogging configures slog from the verbose flag and the log section.
func setupLogging(level int, logCfg config.LogConfig, console bool) {
	slogLevel := parseLevel(logCfg.Level)
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	var writers []io.Writer
	if console {
		writers = append(writers, os.Stderr)
	}
	if logCfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(logCfg.File), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot create log directory: %v\n", err)
		} else {
			writers = append(writers, &lumberjack.Logger{
				Filename:   logCfg.File,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			})
		}
	}

	var out io.Writer = io.Discard
	if len(writers) > 0 {
		out = io.MultiWriter(writers...)
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
