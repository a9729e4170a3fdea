package models

// PositionType 定义了持仓方向的类型
type PositionType string

const (
	Long  PositionType = "LONG"
	Short PositionType = "SHORT"
)

// Position 定义了模拟账户中的一个未平仓位。
// size 在开仓时一次性确定, 之后不再重算。
type Position struct {
	ID         string       `json:"id"`          // 唯一ID, 生成后不复用
	Symbol     string       `json:"symbol"`      // 交易对, e.g., "DOGEUSDT"
	Type       PositionType `json:"type"`        // LONG 或 SHORT
	EntryPrice float64      `json:"entry_price"` // 开仓价格
	Margin     float64      `json:"margin"`      // 占用的保证金 (USDT)
	Leverage   int          `json:"leverage"`    // 杠杆倍数
	Size       float64      `json:"size"`        // 仓位大小 (基础货币数量) = margin*leverage/entryPrice
	OpenedAt   int64        `json:"opened_at"`   // 开仓时间, Unix 毫秒
}

// TradeHistory 记录一笔已平仓的交易, 平仓时创建, 之后不可变
type TradeHistory struct {
	ID         string       `json:"id"` // 与原持仓相同的ID
	Symbol     string       `json:"symbol"`
	Type       PositionType `json:"type"`
	EntryPrice float64      `json:"entry_price"`
	ExitPrice  float64      `json:"exit_price"`
	PnL        float64      `json:"pnl"`
	ClosedAt   int64        `json:"closed_at"` // 平仓时间, Unix 毫秒
}

// DemoAccount 是模拟账户的完整状态, 每次变更后整体持久化。
// history 只增不减; reset 会整体替换整个结构。
type DemoAccount struct {
	Balance   float64        `json:"balance"`
	Positions []Position     `json:"positions"`
	History   []TradeHistory `json:"history"`
}

// NewDemoAccount 返回一个全新的初始账户
func NewDemoAccount(initialBalance float64) *DemoAccount {
	return &DemoAccount{
		Balance:   initialBalance,
		Positions: make([]Position, 0),
		History:   make([]TradeHistory, 0),
	}
}

// Copy 返回账户的深拷贝, 供并发读取方安全使用
func (a *DemoAccount) Copy() *DemoAccount {
	if a == nil {
		return nil
	}
	accountCopy := &DemoAccount{
		Balance:   a.Balance,
		Positions: make([]Position, len(a.Positions)),
		History:   make([]TradeHistory, len(a.History)),
	}
	copy(accountCopy.Positions, a.Positions)
	copy(accountCopy.History, a.History)
	return accountCopy
}
