package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"evalgo.org/sitesync/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runShowConfig,
}

var initConfigCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	RunE:  runInitConfig,
}

func init() {
	initConfigCmd.Flags().StringP("output", "o", "config.yaml", "file to write")
	initConfigCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(initConfigCmd)
}

func runShowConfig(cmd *cobra.Command, args []string) error {
	shown := *cfg
	// API keys are secrets
	if len(shown.Security.APIKeys) > 0 {
		shown.Security.APIKeys = []string{fmt.Sprintf("<%d keys>", len(cfg.Security.APIKeys))}
	}

	data, err := yaml.Marshal(&shown)
	if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(output); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", output)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return err
	}
	content := append([]byte("# SiteSync Configuration\n\n"), data...)

	if err := os.WriteFile(output, content, 0644); err != nil {
		return err
	}

	fmt.Printf("✓ Created %s\n", output)
	return nil
}
