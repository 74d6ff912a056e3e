package calc

import (
	"testing"

	"github.com/tradelog/journal-engine/internal/model"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		trades []model.Trade
		want   model.PositionStatus
	}{
		{"no trades is planned", nil, model.StatusPlanned},
		{"open after buy", []model.Trade{buy("50", "150")}, model.StatusOpen},
		{"still open after partial exit", []model.Trade{buy("50", "150"), sell("20", "160")}, model.StatusOpen},
		{"closed when flat", []model.Trade{buy("50", "150"), sell("50", "160")}, model.StatusClosed},
		{"reopened after new fill", []model.Trade{buy("50", "150"), sell("50", "160"), buy("10", "155")}, model.StatusOpen},
		{"oversold counts as open", []model.Trade{buy("10", "150"), sell("25", "160")}, model.StatusOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Status(tt.trades); got != tt.want {
				t.Fatalf("Status = %q, want %q", got, tt.want)
			}
		})
	}
}
