package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tradelog/journal-engine/internal/model"
	"github.com/tradelog/journal-engine/internal/service"
)

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List and record fills against a position",
	Long: `List and record fills against a position.

Examples:
  tradelog trades list <position-id>
  tradelog trades add <position-id> --direction buy --quantity 100 --price 150.25
  tradelog trades add <position-id> --direction sell --quantity 100 --price 0 --notes "expired worthless"`,
}

var tradesListCmd = &cobra.Command{
	Use:   "list <position-id>",
	Short: "List a position's trades in recording order",
	Args:  cobra.ExactArgs(1),
	RunE:  runTradesList,
}

var tradesAddCmd = &cobra.Command{
	Use:   "add <position-id>",
	Short: "Record a fill against a position",
	Args:  cobra.ExactArgs(1),
	RunE:  runTradesAdd,
}

var (
	tradeDirection  string
	tradeQuantity   string
	tradePrice      string
	tradeUnderlying string
	tradeNotes      string
)

func init() {
	rootCmd.AddCommand(tradesCmd)
	tradesCmd.AddCommand(tradesListCmd)
	tradesCmd.AddCommand(tradesAddCmd)

	tradesAddCmd.Flags().StringVar(&tradeDirection, "direction", "", "buy or sell")
	tradesAddCmd.Flags().StringVar(&tradeQuantity, "quantity", "", "fill quantity")
	tradesAddCmd.Flags().StringVar(&tradePrice, "price", "", "fill price (0 allowed on sells)")
	tradesAddCmd.Flags().StringVar(&tradeUnderlying, "underlying", "", "underlying symbol (defaults to the position's)")
	tradesAddCmd.Flags().StringVar(&tradeNotes, "notes", "", "free-text note on the fill")
	tradesAddCmd.MarkFlagRequired("direction")
	tradesAddCmd.MarkFlagRequired("quantity")
	tradesAddCmd.MarkFlagRequired("price")
}

func runTradesList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	trades, err := service.NewTradeService(st).GetTradesByPositionID(context.Background(), args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDIRECTION\tQTY\tPRICE\tUNDERLYING\tTIMESTAMP")
	for _, t := range trades {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Direction, t.Quantity, t.Price, t.Underlying,
			t.Timestamp.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runTradesAdd(cmd *cobra.Command, args []string) error {
	qty, err := decimal.NewFromString(tradeQuantity)
	if err != nil {
		return fmt.Errorf("parse quantity: %w", err)
	}
	price, err := decimal.NewFromString(tradePrice)
	if err != nil {
		return fmt.Errorf("parse price: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	trades, err := service.NewTradeService(st).AddTrade(context.Background(), model.Trade{
		PositionID: args[0],
		Direction:  model.TradeDirection(tradeDirection),
		Quantity:   qty,
		Price:      price,
		Underlying: tradeUnderlying,
		Notes:      tradeNotes,
	})
	if err != nil {
		return err
	}

	last := trades[len(trades)-1]
	fmt.Printf("recorded %s %s x %s @ %s (trade %s, %d total)\n",
		last.Direction, last.Underlying, last.Quantity, last.Price, last.ID, len(trades))
	return nil
}
