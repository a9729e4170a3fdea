package models

// Config 结构体定义了服务的所有配置参数
type Config struct {
	Symbol           string    `json:"symbol"`             // 默认交易对, 如 "DOGEUSDT"
	Interval         string    `json:"interval"`           // K线周期, 如 "1h"
	KlineLimit       int       `json:"kline_limit"`        // 单次拉取的K线数量
	InitialBalance   float64   `json:"initial_balance"`    // 模拟账户初始资金 (USDT)
	MaxLeverage      int       `json:"max_leverage"`       // 杠杆上限, 0 表示不限制
	MaxTickerPrice   float64   `json:"max_ticker_price"`   // 行情列表的价格上限 (只展示低价币)
	TickerRefreshSec int       `json:"ticker_refresh_sec"` // 行情列表刷新间隔(秒)
	DBPath           string    `json:"db_path"`            // 数据库文件路径
	ListenAddr       string    `json:"listen_addr"`        // HTTP 监听地址
	GeminiModel      string    `json:"gemini_model"`       // AI 模型名称
	LogConfig        LogConfig `json:"log"`                // 日志配置
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level      string `json:"level"`       // 日志级别, e.g., "debug", "info", "warn", "error"
	Output     string `json:"output"`      // 输出模式: "console", "file", "both"
	File       string `json:"file"`        // 日志文件路径
	MaxSize    int    `json:"max_size"`    // 单个日志文件的最大大小 (MB)
	MaxBackups int    `json:"max_backups"` // 保留的旧日志文件最大数量
	MaxAge     int    `json:"max_age"`     // 旧日志文件的最大保留天数
	Compress   bool   `json:"compress"`    // 是否压缩旧日志文件
}

// Candle 定义了一根K线, 按时间升序产出, 接收后不可变
type Candle struct {
	Time   int64   `json:"time"` // 开盘时间, Unix 毫秒
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Technicals 是从一段K线序列派生出的技术指标快照, 纯投影, 无独立生命周期
type Technicals struct {
	RSI                float64 `json:"rsi"`
	EMA7               float64 `json:"ema7"`
	EMA25              float64 `json:"ema25"`
	EMA99              float64 `json:"ema99"`
	CurrentPrice       float64 `json:"currentPrice"`
	PriceChangePercent float64 `json:"priceChangePercent"`
}

// Ticker 定义了单个交易对的24小时行情统计
type Ticker struct {
	Symbol             string  `json:"symbol"`
	LastPrice          float64 `json:"lastPrice"`
	PriceChangePercent float64 `json:"priceChangePercent"`
	HighPrice          float64 `json:"highPrice"`
	LowPrice           float64 `json:"lowPrice"`
	Volume             float64 `json:"volume"` // 24小时计价货币成交额 (USDT)
}

// Signal 定义了AI给出的交易信号
type Signal string

const (
	SignalStrongBuy  Signal = "STRONG_BUY"
	SignalBuy        Signal = "BUY"
	SignalNeutral    Signal = "NEUTRAL"
	SignalSell       Signal = "SELL"
	SignalStrongSell Signal = "STRONG_SELL"
)

// Analysis 是AI信号服务返回的结构化建议。
// 对账本而言它只是一个参考值, 不参与任何结算逻辑。
type Analysis struct {
	Signal              Signal  `json:"signal"`
	Confidence          float64 `json:"confidence"` // 0-100
	Reasoning           string  `json:"reasoning"`
	SuggestedEntry      float64 `json:"suggestedEntry"`
	SuggestedTakeProfit float64 `json:"suggestedTakeProfit"`
	SuggestedStopLoss   float64 `json:"suggestedStopLoss"`
	RiskRewardRatio     string  `json:"riskRewardRatio"`
}
