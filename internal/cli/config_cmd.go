package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/safebridge/internal/config"
	"github.com/example/safebridge/internal/wire"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage .safebridge/config.yaml",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path := config.Path(flags.dir)

		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to check config: %w", err)
		}

		if err := config.SaveConfig(flags.dir, config.Default()); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config (file, defaults and flags)",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(wire.Config())
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

// ConfigCmd returns the config command
func ConfigCmd() *cobra.Command {
	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing config")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	return configCmd
}
