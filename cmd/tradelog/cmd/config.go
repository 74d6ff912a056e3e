package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradelog/journal-engine/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the server configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter config file with the defaults",
	Long: `Write a starter config file with the defaults. The format follows the
extension: .yaml/.yml is YAML, anything else JSON. Defaults to
./journal.yaml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "./journal.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if err := config.Default().SaveToFile(path); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
