package market

import (
	"context"

	"futures-ai-dashboard-go/internal/models"
)

// Provider 定义了行情数据源必须提供的只读查询。
// 核心逻辑只消费它, 不关心数据来自哪个交易所。
type Provider interface {
	// Klines returns the last limit candles for symbol at interval,
	// ordered ascending by open time.
	Klines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)

	// Tickers returns 24h stats for the dashboard's ticker list, already
	// filtered and sorted for display.
	Tickers(ctx context.Context) ([]models.Ticker, error)
}
