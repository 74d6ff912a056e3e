package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tradelog/journal-engine/internal/service"
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Enter and inspect daily closing prices",
	Long: `Enter and inspect daily closing prices.

New prices are screened against the latest stored close; a move beyond the
confirmation threshold is refused unless --confirm is given.

Examples:
  tradelog prices add AAPL 2026-03-02 151.25
  tradelog prices add AAPL 2026-03-03 190 --confirm
  tradelog prices list AAPL
  tradelog prices latest AAPL`,
}

var pricesAddCmd = &cobra.Command{
	Use:   "add <underlying> <YYYY-MM-DD> <close>",
	Short: "Record a closing price for one day",
	Args:  cobra.ExactArgs(3),
	RunE:  runPricesAdd,
}

var pricesListCmd = &cobra.Command{
	Use:   "list <underlying>",
	Short: "List an underlying's price history in date order",
	Args:  cobra.ExactArgs(1),
	RunE:  runPricesList,
}

var pricesLatestCmd = &cobra.Command{
	Use:   "latest <underlying>",
	Short: "Show the most recent stored price",
	Args:  cobra.ExactArgs(1),
	RunE:  runPricesLatest,
}

var priceConfirm bool

func init() {
	rootCmd.AddCommand(pricesCmd)
	pricesCmd.AddCommand(pricesAddCmd)
	pricesCmd.AddCommand(pricesListCmd)
	pricesCmd.AddCommand(pricesLatestCmd)

	pricesAddCmd.Flags().BoolVar(&priceConfirm, "confirm", false, "accept a price flagged as a suspicious move")
}

func runPricesAdd(cmd *cobra.Command, args []string) error {
	underlying, date := args[0], args[1]
	closePrice, err := decimal.NewFromString(args[2])
	if err != nil {
		return fmt.Errorf("parse close: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	prices := service.NewPriceService(st, decimal.Zero)

	check, err := prices.ValidatePriceChange(ctx, underlying, closePrice)
	if err != nil {
		return err
	}
	if check.RequiresConfirmation && !priceConfirm {
		return fmt.Errorf("%s moved %s%% from the last close %s; re-run with --confirm if the price is right",
			underlying, check.PercentChange, check.PreviousClose)
	}

	rec, err := prices.CreateOrUpdateSimple(ctx, underlying, date, closePrice)
	if err != nil {
		return err
	}
	fmt.Printf("recorded %s %s close %s\n", rec.Underlying, rec.Date, rec.Close)
	return nil
}

func runPricesList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	records, err := service.NewPriceService(st, decimal.Zero).History(context.Background(), args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tOPEN\tHIGH\tLOW\tCLOSE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Date, r.Open, r.High, r.Low, r.Close)
	}
	return w.Flush()
}

func runPricesLatest(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	rec, err := service.NewPriceService(st, decimal.Zero).GetLatest(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s %s close %s (open %s, high %s, low %s)\n",
		rec.Underlying, rec.Date, rec.Close, rec.Open, rec.High, rec.Low)
	return nil
}
