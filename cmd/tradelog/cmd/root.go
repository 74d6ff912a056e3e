package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tradelog/journal-engine/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "tradelog",
	Short: "Inspect and maintain a trading journal database",
	Long: `Tradelog works directly against the journal's SQLite database, without
the HTTP server running.

It provides tools for:
  - Listing and inspecting positions, trades, and journal entries
  - Recording fills against a position
  - Entering daily closing prices, with sanity screening
  - Generating a starter config file for the server`,
}

var dbPath string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "./journal.db", "path to the SQLite journal DB")
}

// openStore opens the journal database named by the --db flag.
func openStore() (*store.SQLiteStore, error) {
	return store.OpenSQLite(dbPath)
}
