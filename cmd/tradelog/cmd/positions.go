package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tradelog/journal-engine/internal/service"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List and inspect journal positions",
	Long: `List and inspect journal positions.

Examples:
  tradelog positions list
  tradelog positions show <position-id>
  tradelog positions delete <position-id>`,
}

var positionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every position, newest first",
	Args:  cobra.NoArgs,
	RunE:  runPositionsList,
}

var positionsShowCmd = &cobra.Command{
	Use:   "show <position-id>",
	Short: "Show one position with its risk profile and cost basis",
	Args:  cobra.ExactArgs(1),
	RunE:  runPositionsShow,
}

var positionsDeleteCmd = &cobra.Command{
	Use:   "delete <position-id>",
	Short: "Delete a position (its journal entries stay)",
	Args:  cobra.ExactArgs(1),
	RunE:  runPositionsDelete,
}

func init() {
	rootCmd.AddCommand(positionsCmd)
	positionsCmd.AddCommand(positionsListCmd)
	positionsCmd.AddCommand(positionsShowCmd)
	positionsCmd.AddCommand(positionsDeleteCmd)
}

func runPositionsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	positions, err := service.NewPositionService(st).GetAll(context.Background())
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYMBOL\tSTRATEGY\tSTATUS\tENTRY\tQTY\tTRADES")
	for _, p := range positions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			p.ID, p.Symbol, p.StrategyType, p.Status,
			p.TargetEntryPrice, p.TargetQuantity, len(p.Trades))
	}
	return w.Flush()
}

func runPositionsShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	positions := service.NewPositionService(st)
	trades := service.NewTradeService(st)

	p, err := positions.GetByID(ctx, args[0])
	if err != nil {
		return err
	}
	risk, err := positions.Risk(ctx, p.ID)
	if err != nil {
		return err
	}
	basis, err := trades.CostBasis(ctx, p.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Position  %s\n", p.ID)
	fmt.Printf("Symbol    %s (%s, %s)\n", p.Symbol, p.StrategyType, p.TradeKind)
	fmt.Printf("Status    %s\n", p.Status)
	fmt.Printf("Plan      entry %s x %s, target %s, stop %s\n",
		p.TargetEntryPrice, p.TargetQuantity, p.ProfitTarget, p.StopLoss)
	if p.Option != nil {
		fmt.Printf("Option    %s, strike %s, premium %s, expires %s\n",
			p.Option.OptionType, p.Option.StrikePrice, p.Option.PremiumPerContract,
			p.Option.ExpirationDate.Format("2006-01-02"))
	}
	fmt.Printf("Thesis    %s\n", p.Thesis)
	fmt.Printf("Risk      invest %s, max profit %s, max loss %s (%s)\n",
		risk.TotalInvestment, risk.MaxProfit, risk.MaxLoss, risk.RiskRewardRatio)
	fmt.Printf("Cost      avg %s, total %s, open qty %s\n",
		basis.AverageCost, basis.TotalCost, basis.OpenQuantity)
	fmt.Printf("Activity  %d trades, %d journal entries linked\n",
		len(p.Trades), len(p.JournalEntryIDs))
	return nil
}

func runPositionsDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	if err := service.NewPositionService(st).Delete(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}
