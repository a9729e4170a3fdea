package advisor

import (
	"context"

	"futures-ai-dashboard-go/internal/models"
)

// Advisor 定义了AI信号服务。返回的建议是纯参考值:
// 它不影响账本的任何不变量, 开平仓也不依赖它。
type Advisor interface {
	Analyze(ctx context.Context, symbol string, technicals models.Technicals, candles []models.Candle) (*models.Analysis, error)
}
