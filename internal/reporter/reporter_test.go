package reporter

import (
	"testing"

	"futures-ai-dashboard-go/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestBuildSummary(t *testing.T) {
	account := models.DemoAccount{
		Balance: 10080,
		Positions: []models.Position{
			{ID: "a", Margin: 100},
			{ID: "b", Margin: 250},
		},
		History: []models.TradeHistory{
			{ID: "c", PnL: 120},
			{ID: "d", PnL: -40},
			{ID: "e", PnL: 0},
			{ID: "f", PnL: 50},
		},
	}

	s := BuildSummary(account)

	assert.Equal(t, 10080.0, s.Balance)
	assert.InDelta(t, 130.0, s.TotalPnL, 1e-9)
	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 2, s.WinningTrades)
	assert.Equal(t, 1, s.LosingTrades) // break-even trades count as neither
	assert.InDelta(t, 50.0, s.WinRate, 1e-9)
	assert.Equal(t, 2, s.OpenPositions)
	assert.InDelta(t, 350.0, s.EscrowedMargin, 1e-9)
}

func TestBuildSummaryEmptyAccount(t *testing.T) {
	s := BuildSummary(*models.NewDemoAccount(10000))

	assert.Equal(t, 10000.0, s.Balance)
	assert.Zero(t, s.TotalTrades)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.EscrowedMargin)
}
