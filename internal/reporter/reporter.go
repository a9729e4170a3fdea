package reporter

import (
	"fmt"
	"os"
	"time"

	"futures-ai-dashboard-go/internal/models"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Summary 存储从账户状态计算出的会话统计指标
type Summary struct {
	Balance        float64
	TotalPnL       float64 // 已实现盈亏合计
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	WinRate        float64 // 百分比
	OpenPositions  int
	EscrowedMargin float64 // 未平仓位占用的保证金
}

// BuildSummary 根据账户状态计算统计指标
func BuildSummary(account models.DemoAccount) Summary {
	s := Summary{
		Balance:       account.Balance,
		TotalTrades:   len(account.History),
		OpenPositions: len(account.Positions),
	}

	for _, trade := range account.History {
		s.TotalPnL += trade.PnL
		if trade.PnL > 0 {
			s.WinningTrades++
		} else if trade.PnL < 0 {
			s.LosingTrades++
		}
	}

	for _, position := range account.Positions {
		s.EscrowedMargin += position.Margin
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	}

	return s
}

// PrintReport 在退出时打印本次会话的模拟账户报告
func PrintReport(account models.DemoAccount) {
	summary := BuildSummary(account)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("模拟账户报告")
	t.AppendRows([]table.Row{
		{"余额", formatUSDT(summary.Balance)},
		{"已实现盈亏", formatUSDT(summary.TotalPnL)},
		{"总交易次数", summary.TotalTrades},
		{"盈利次数", summary.WinningTrades},
		{"亏损次数", summary.LosingTrades},
		{"胜率", formatPercent(summary.WinRate)},
		{"未平仓位", summary.OpenPositions},
		{"占用保证金", formatUSDT(summary.EscrowedMargin)},
	})
	t.Render()

	if len(account.Positions) > 0 {
		pt := table.NewWriter()
		pt.SetOutputMirror(os.Stdout)
		pt.SetStyle(table.StyleLight)
		pt.SetTitle("未平仓位")
		pt.AppendHeader(table.Row{"ID", "交易对", "方向", "开仓价", "保证金", "杠杆", "仓位"})
		for _, p := range account.Positions {
			pt.AppendRow(table.Row{p.ID, p.Symbol, p.Type, p.EntryPrice, formatUSDT(p.Margin), p.Leverage, p.Size})
		}
		pt.Render()
	}

	if len(account.History) > 0 {
		ht := table.NewWriter()
		ht.SetOutputMirror(os.Stdout)
		ht.SetStyle(table.StyleLight)
		ht.SetTitle("交易历史")
		ht.AppendHeader(table.Row{"ID", "交易对", "方向", "开仓价", "平仓价", "盈亏", "平仓时间"})
		for _, h := range account.History {
			ht.AppendRow(table.Row{
				h.ID, h.Symbol, h.Type, h.EntryPrice, h.ExitPrice,
				formatUSDT(h.PnL),
				time.UnixMilli(h.ClosedAt).Format("2006-01-02 15:04:05"),
			})
		}
		ht.Render()
	}
}

func formatUSDT(v float64) string {
	return fmt.Sprintf("%.2f USDT", v)
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}
