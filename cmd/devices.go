package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/mockinterview/internal/audio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture devices and the negotiated encoding",
	Long: `List the microphones the configured audio backend can open and show which
encoding answers will be uploaded in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		device, err := audio.NewDevice(cfg.Audio, verboseLevel >= 2)
		if err != nil {
			return fmt.Errorf("failed to create capture device: %w", err)
		}

		fmt.Printf("Audio backend: %s (%s, %s)\n", cfg.Audio.Backend, cfg.Audio.InputFormat, runtime.GOOS)
		fmt.Printf("═══════════════════════════════════════\n\n")

		sources, err := device.Sources()
		if err != nil {
			return fmt.Errorf("failed to list sources: %w", err)
		}

		fmt.Printf("SOURCES (%d found):\n", len(sources))
		for i, source := range sources {
			marker := " "
			if source.Default {
				marker = "*"
			}
			line := fmt.Sprintf(" %s %d. %s", marker, i+1, source.Name)
			if source.Description != "" {
				line += " (" + source.Description + ")"
			}
			fmt.Println(line)
		}
		if len(sources) == 0 {
			fmt.Println("  none; check that a microphone is connected and ffmpeg can reach it")
		}

		order := audio.PreferenceFromNames(cfg.Audio.Encodings)
		fmt.Printf("\nENCODINGS (preference order):\n")
		for _, enc := range order {
			status := "unsupported"
			if device.Supports(enc) {
				status = "supported"
			}
			fmt.Printf("  %-10s %-24s %s\n", enc.Name, enc.MimeType, status)
		}

		negotiated := audio.Negotiate(device, order)
		fmt.Printf("\nAnswers will be uploaded as %s (%s)\n", negotiated.Name, strings.TrimSpace(negotiated.MimeType))
		fmt.Printf("Configured device: %s\n", cfg.Audio.Device)

		return nil
	},
}
