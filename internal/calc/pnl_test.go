package calc

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tradelog/journal-engine/internal/model"
)

func priceAt(close string) model.PriceRecord {
	return model.PriceRecord{
		Underlying: "AAPL",
		Date:       "2024-03-15",
		Open:       d(close),
		High:       d(close),
		Low:        d(close),
		Close:      d(close),
	}
}

func TestTradePnL(t *testing.T) {
	latest := priceAt("160")

	if got := TradePnL(buy("100", "150"), latest); !got.Equal(d("1000")) {
		t.Fatalf("buy P&L = %s, want 1000", got)
	}
	if got := TradePnL(buy("100", "170"), latest); !got.Equal(d("-1000")) {
		t.Fatalf("underwater buy P&L = %s, want -1000", got)
	}
	if got := TradePnL(sell("100", "150"), latest); !got.IsZero() {
		t.Fatalf("sell P&L = %s, want 0 (already realized)", got)
	}
}

func TestPositionPnL(t *testing.T) {
	prices := map[string]model.PriceRecord{"AAPL": priceAt("160")}

	p := model.Position{Trades: []model.Trade{buy("100", "150"), buy("50", "155")}}
	got, ok := PositionPnL(p, prices)
	if !ok {
		t.Fatal("PositionPnL reported no data for a priced underlying")
	}
	if !got.Equal(d("1250")) {
		t.Fatalf("PositionPnL = %s, want 1250", got)
	}
}

// A priced position that nets to zero must still report data present;
// "no data" is reserved for missing prices or missing trades.
func TestPositionPnLZeroVersusNoData(t *testing.T) {
	prices := map[string]model.PriceRecord{"AAPL": priceAt("150")}

	flat := model.Position{Trades: []model.Trade{buy("100", "150")}}
	got, ok := PositionPnL(flat, prices)
	if !ok || !got.IsZero() {
		t.Fatalf("flat position = (%s, %v), want (0, true)", got, ok)
	}

	noTrades := model.Position{}
	if _, ok := PositionPnL(noTrades, prices); ok {
		t.Fatal("position without trades reported price data")
	}

	unpriced := model.Position{Trades: []model.Trade{buy("100", "150")}}
	if _, ok := PositionPnL(unpriced, map[string]model.PriceRecord{"MSFT": priceAt("400")}); ok {
		t.Fatal("position with unpriced underlying reported price data")
	}
}

func TestPnLPercentage(t *testing.T) {
	if got := PnLPercentage(d("500"), d("7500")); !got.Equal(d("6.67")) {
		t.Fatalf("PnLPercentage = %s, want 6.67", got)
	}
	if got := PnLPercentage(d("1500"), d("15000")); !got.Equal(d("10")) {
		t.Fatalf("PnLPercentage = %s, want 10", got)
	}
	if got := PnLPercentage(d("500"), decimal.Zero); !got.IsZero() {
		t.Fatalf("zero-basis PnLPercentage = %s, want 0", got)
	}
}
