package ledger

import (
	"errors"
	"sync"
	"time"

	"futures-ai-dashboard-go/internal/models"
	"futures-ai-dashboard-go/internal/persistence"

	"github.com/jxskiss/base62"
	"go.uber.org/zap"
)

// Rejection reasons for an open request. Validation lives inside the ledger
// so a misbehaving caller cannot corrupt the balance.
var (
	ErrInvalidMargin       = errors.New("ledger: margin must be greater than zero")
	ErrInsufficientBalance = errors.New("ledger: margin exceeds available balance")
	ErrInvalidLeverage     = errors.New("ledger: leverage out of range")
	ErrInvalidPrice        = errors.New("ledger: entry price must be greater than zero")
	ErrInvalidPositionType = errors.New("ledger: position type must be LONG or SHORT")

	// ErrPositionNotFound is returned by ClosePosition for an unknown id, so
	// callers can tell "nothing happened" from "closed successfully".
	ErrPositionNotFound = errors.New("ledger: position not found")
)

// QuoteFunc resolves the current price for a symbol. ClosePosition settles
// each position against its own symbol's price, never a globally selected one.
type QuoteFunc func(symbol string) (float64, error)

// Ledger owns the demo account and is its sole mutator. All reads hand out
// deep copies; all mutations are serialized behind the mutex and followed by
// a full-account save.
type Ledger struct {
	mu             sync.Mutex
	account        *models.DemoAccount
	repo           persistence.AccountRepository
	initialBalance float64
	maxLeverage    int // 0 disables the cap
	logger         *zap.SugaredLogger
	lastID         int64
}

// NewLedger restores the account from the repository, or starts from the
// initial account when nothing is stored or the stored record is unreadable.
func NewLedger(repo persistence.AccountRepository, initialBalance float64, maxLeverage int, logger *zap.SugaredLogger) *Ledger {
	l := &Ledger{
		repo:           repo,
		initialBalance: initialBalance,
		maxLeverage:    maxLeverage,
		logger:         logger,
	}

	if repo != nil {
		account, err := repo.LoadAccount()
		switch {
		case err != nil:
			logger.Warnf("无法加载模拟账户: %v, 将以初始账户启动。", err)
		case account != nil:
			l.account = account
			logger.Infof("已恢复模拟账户: 余额 %.2f USDT, %d 个持仓, %d 条历史记录",
				account.Balance, len(account.Positions), len(account.History))
		}
	}

	if l.account == nil {
		l.account = models.NewDemoAccount(initialBalance)
	}

	return l
}

// OpenPosition escrows margin and appends a new position. Opening twice on
// the same symbol creates two independent positions; there is no merging.
func (l *Ledger) OpenPosition(symbol string, side models.PositionType, margin float64, leverage int, entryPrice float64) (models.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if side != models.Long && side != models.Short {
		return models.Position{}, ErrInvalidPositionType
	}
	if margin <= 0 {
		return models.Position{}, ErrInvalidMargin
	}
	if margin > l.account.Balance {
		return models.Position{}, ErrInsufficientBalance
	}
	if leverage < 1 || (l.maxLeverage > 0 && leverage > l.maxLeverage) {
		return models.Position{}, ErrInvalidLeverage
	}
	if entryPrice <= 0 {
		return models.Position{}, ErrInvalidPrice
	}

	now := time.Now()
	position := models.Position{
		ID:         l.nextID(now),
		Symbol:     symbol,
		Type:       side,
		EntryPrice: entryPrice,
		Margin:     margin,
		Leverage:   leverage,
		Size:       margin * float64(leverage) / entryPrice,
		OpenedAt:   now.UnixMilli(),
	}

	l.account.Balance -= margin
	l.account.Positions = append(l.account.Positions, position)
	l.persist()

	l.logger.Infof("开仓 %s %s: 保证金 %.2f, 杠杆 %dx, 开仓价 %.6f, 仓位 %.4f",
		position.Type, position.Symbol, position.Margin, position.Leverage, position.EntryPrice, position.Size)

	return position, nil
}

// ClosePosition settles a position at its symbol's current price, returns the
// escrowed margin plus realized PnL to the balance, and appends an immutable
// history record carrying the position's id. The loss is linear and uncapped;
// there is no liquidation, so the balance may go negative.
func (l *Ledger) ClosePosition(id string, quote QuoteFunc) (models.TradeHistory, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := -1
	for i := range l.account.Positions {
		if l.account.Positions[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.TradeHistory{}, ErrPositionNotFound
	}

	position := l.account.Positions[idx]

	exitPrice, err := quote(position.Symbol)
	if err != nil {
		// Quote failures leave the account untouched.
		return models.TradeHistory{}, err
	}

	priceDiff := exitPrice - position.EntryPrice
	if position.Type == models.Short {
		priceDiff = position.EntryPrice - exitPrice
	}
	pnl := priceDiff * position.Size

	trade := models.TradeHistory{
		ID:         position.ID,
		Symbol:     position.Symbol,
		Type:       position.Type,
		EntryPrice: position.EntryPrice,
		ExitPrice:  exitPrice,
		PnL:        pnl,
		ClosedAt:   time.Now().UnixMilli(),
	}

	l.account.Balance += position.Margin + pnl
	l.account.Positions = append(l.account.Positions[:idx], l.account.Positions[idx+1:]...)
	l.account.History = append(l.account.History, trade)
	l.persist()

	l.logger.Infof("平仓 %s %s: 开仓价 %.6f, 平仓价 %.6f, 盈亏 %+.2f USDT",
		trade.Type, trade.Symbol, trade.EntryPrice, trade.ExitPrice, trade.PnL)

	return trade, nil
}

// Reset unconditionally replaces the account with a fresh one. Open positions
// vanish without settlement and no history record is written for them.
func (l *Ledger) Reset() models.DemoAccount {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.account = models.NewDemoAccount(l.initialBalance)
	l.persist()

	l.logger.Infof("模拟账户已重置, 余额恢复为 %.2f USDT", l.initialBalance)

	return *l.account.Copy()
}

// Account returns a deep copy of the current account for safe concurrent reads.
func (l *Ledger) Account() models.DemoAccount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.account.Copy()
}

// nextID returns a base62 timestamp id, strictly increasing so two opens in
// the same nanosecond still get distinct ids.
func (l *Ledger) nextID(now time.Time) string {
	n := now.UnixNano()
	if n <= l.lastID {
		n = l.lastID + 1
	}
	l.lastID = n
	return string(base62.FormatInt(n))
}

// persist saves the whole account after a mutation. The in-memory state is
// already applied; a failed save is logged and the operation stands.
func (l *Ledger) persist() {
	if l.repo == nil {
		return
	}
	if err := l.repo.SaveAccount(l.account.Copy()); err != nil {
		l.logger.Errorf("CRITICAL: Failed to save demo account: %v", err)
	}
}
