package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tradelog/journal-engine/internal/service"
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Read journal entries",
	Long: `Read journal entries.

Examples:
  tradelog entries list <position-id>
  tradelog entries show <entry-id>`,
}

var entriesListCmd = &cobra.Command{
	Use:   "list <position-id>",
	Short: "List a position's entries, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntriesList,
}

var entriesShowCmd = &cobra.Command{
	Use:   "show <entry-id>",
	Short: "Show one entry with its prompts and responses",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntriesShow,
}

func init() {
	rootCmd.AddCommand(entriesCmd)
	entriesCmd.AddCommand(entriesListCmd)
	entriesCmd.AddCommand(entriesShowCmd)
}

func runEntriesList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	entries, err := service.NewJournalService(st).GetByPositionID(context.Background(), args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tTRADE\tFIELDS\tCREATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			e.ID, e.EntryType, e.TradeID, len(e.Fields),
			e.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runEntriesShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	e, err := service.NewJournalService(st).GetByID(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Entry     %s (%s)\n", e.ID, e.EntryType)
	if e.PositionID != "" {
		fmt.Printf("Position  %s\n", e.PositionID)
	}
	if e.TradeID != "" {
		fmt.Printf("Trade     %s\n", e.TradeID)
	}
	fmt.Printf("Created   %s\n", e.CreatedAt.Format("2006-01-02 15:04"))
	for _, f := range e.Fields {
		fmt.Println()
		if f.Prompt != "" {
			fmt.Printf("[%s] %s\n", f.Name, f.Prompt)
		} else {
			fmt.Printf("[%s]\n", f.Name)
		}
		fmt.Println(f.Response)
	}
	return nil
}
