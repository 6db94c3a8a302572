package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/mockinterview/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage mockinterview configuration settings and profiles.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Printf("# file: %s\n# profile: %s\n", cfgFile, cfg.Profile)
		fmt.Print(string(out))
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "nano"
		}

		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			if err := writeDefaultConfig(cfgFile); err != nil {
				return err
			}
			fmt.Printf("Created %s with default settings\n", cfgFile)
		}

		fmt.Printf("Opening %s with %s...\n", cfgFile, editor)

		c := exec.Command(editor, cfgFile)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("editor failed: %w", err)
		}

		if _, err := config.LoadWithProfile(cfgFile, profile, true); err != nil {
			return fmt.Errorf("configuration is invalid after editing: %w", err)
		}
		fmt.Println("Configuration is valid")
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use <profile>",
	Short: "Set the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UpdateActiveConfig(cfgFile, args[0]); err != nil {
			return err
		}
		fmt.Printf("Active profile set to '%s'\n", args[0])
		return nil
	},
}

var configProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the profiles in the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := config.ReadRootConfig(cfgFile)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(root.Configs))
		for name := range root.Configs {
			names = append(names, name)
		}
		sort.Strings(names)

		active := root.ActiveConfig
		if active == "" {
			active = "default"
		}
		for _, name := range names {
			marker := " "
			if name == active {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, name)
		}
		return nil
	},
}

// writeDefaultConfig creates a config file holding the built-in defaults as
// the "default" profile.
func writeDefaultConfig(path string) error {
	defaults := config.Default()
	root := config.RootConfig{
		ActiveConfig: "default",
		Configs:      map[string]*config.Config{"default": defaults},
	}

	out, err := yaml.Marshal(root)
	if err != nil {
		return fmt.Errorf("error marshaling default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", path, err)
	}
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configUseCmd)
	configCmd.AddCommand(configProfilesCmd)
}
