package market

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"futures-ai-dashboard-go/internal/models"

	"github.com/adshao/go-binance/v2/futures"
)

// BinanceProvider 通过币安USDT本位合约的公共接口提供行情数据。
// 公共接口不需要API Key。
type BinanceProvider struct {
	client   *futures.Client
	maxPrice float64 // 行情列表只保留最新价低于该值的交易对
}

// NewBinanceProvider 创建一个新的行情数据源实例
func NewBinanceProvider(maxPrice float64) *BinanceProvider {
	return &BinanceProvider{
		client:   futures.NewClient("", ""),
		maxPrice: maxPrice,
	}
}

// Klines 拉取指定交易对的K线数据
func (p *BinanceProvider) Klines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	klines, err := p.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("拉取 %s K线失败: %w", symbol, err)
	}
	return convertKlines(klines)
}

// Tickers 拉取全市场24小时行情并按展示规则过滤排序
func (p *BinanceProvider) Tickers(ctx context.Context) ([]models.Ticker, error) {
	stats, err := p.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("拉取24小时行情失败: %w", err)
	}

	tickers := make([]models.Ticker, 0, len(stats))
	for _, s := range stats {
		ticker, err := convertTicker(s)
		if err != nil {
			// 个别交易对的脏数据不应毁掉整个列表
			continue
		}
		tickers = append(tickers, ticker)
	}

	return FilterAndSortTickers(tickers, p.maxPrice), nil
}

// FilterAndSortTickers 只保留USDT计价且价格低于maxPrice的交易对,
// 并按24小时成交额从高到低排序。
func FilterAndSortTickers(tickers []models.Ticker, maxPrice float64) []models.Ticker {
	result := make([]models.Ticker, 0, len(tickers))
	for _, t := range tickers {
		if !strings.HasSuffix(t.Symbol, "USDT") {
			continue
		}
		if t.LastPrice >= maxPrice {
			continue
		}
		result = append(result, t)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Volume > result[j].Volume
	})

	return result
}

func convertKlines(klines []*futures.Kline) ([]models.Candle, error) {
	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		open, err1 := strconv.ParseFloat(k.Open, 64)
		high, err2 := strconv.ParseFloat(k.High, 64)
		low, err3 := strconv.ParseFloat(k.Low, 64)
		closePrice, err4 := strconv.ParseFloat(k.Close, 64)
		volume, err5 := strconv.ParseFloat(k.Volume, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			return nil, fmt.Errorf("无法解析K线数据: %+v", k)
		}
		candles = append(candles, models.Candle{
			Time:   k.OpenTime,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}
	return candles, nil
}

func convertTicker(s *futures.PriceChangeStats) (models.Ticker, error) {
	lastPrice, err := strconv.ParseFloat(s.LastPrice, 64)
	if err != nil {
		return models.Ticker{}, err
	}
	changePercent, err := strconv.ParseFloat(s.PriceChangePercent, 64)
	if err != nil {
		return models.Ticker{}, err
	}
	highPrice, err := strconv.ParseFloat(s.HighPrice, 64)
	if err != nil {
		return models.Ticker{}, err
	}
	lowPrice, err := strconv.ParseFloat(s.LowPrice, 64)
	if err != nil {
		return models.Ticker{}, err
	}
	// 成交额使用计价货币口径, 更适合跨币种比较
	quoteVolume, err := strconv.ParseFloat(s.QuoteVolume, 64)
	if err != nil {
		return models.Ticker{}, err
	}

	return models.Ticker{
		Symbol:             s.Symbol,
		LastPrice:          lastPrice,
		PriceChangePercent: changePercent,
		HighPrice:          highPrice,
		LowPrice:           lowPrice,
		Volume:             quoteVolume,
	}, nil
}
