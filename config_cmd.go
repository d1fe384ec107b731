// ABOUTME: The config subcommand
// ABOUTME: Opens the configuration file in $EDITOR, writing the defaults first when it is missing
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/castvox/castvox-go/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Edit the castvox config file",
	Long:    "Edit the castvox config file with $EDITOR. A missing file is created with the defaults.",
	Example: "castvox config\ncastvox config --config path/to/castvox.yaml",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := ensureConfigFile(configPath())
		if err != nil {
			return err
		}

		c, err := editor.Cmd("castvox", path)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Wrote config file to:", path)
		return nil
	},
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return config.DefaultFile()
}

// ensureConfigFile creates path with the default settings if it does not exist
func ensureConfigFile(path string) (string, error) {
	if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
		return "", fmt.Errorf("'%s' is not a supported configuration type: use '.yaml' or '.yml'", ext)
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return "", fmt.Errorf("unable to create directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.DefaultYAML), 0o600); err != nil {
			return "", fmt.Errorf("unable to create config file: %w", err)
		}
	} else if err != nil {
		return "", err
	}
	return path, nil
}
