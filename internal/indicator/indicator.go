package indicator

import (
	"errors"
	"math"

	"futures-ai-dashboard-go/internal/models"
)

// DefaultRSIPeriod is the window used for the dashboard's RSI readout.
const DefaultRSIPeriod = 14

// ErrNotEnoughCandles is returned by Snapshot when fewer than two candles
// are supplied; the percent-change calculation needs a previous close.
var ErrNotEnoughCandles = errors.New("indicator: at least two candles are required")

// EMA computes an exponential moving average over the whole price sequence
// with smoothing k = 2/(period+1). The series is seeded with the first price
// rather than an SMA of the first period values, so early samples follow the
// same trajectory the dashboard has always displayed.
// The caller guarantees a non-empty sequence; an empty one yields NaN.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return math.NaN()
	}
	k := 2.0 / (float64(period) + 1.0)
	ema := prices[0]
	for i := 1; i < len(prices); i++ {
		ema = prices[i]*k + ema*(1.0-k)
	}
	return ema
}

// RSI computes the relative strength index over the last period deltas.
// Fewer than period+1 prices returns the neutral value 50; a window with no
// losses returns 100.
func RSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50
	}

	var gains, losses float64
	for i := len(prices) - period; i < len(prices); i++ {
		diff := prices[i] - prices[i-1]
		if diff >= 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Snapshot derives the Technicals projection from an ordered candle sequence.
// All EMAs run over the entire close sequence, not a trailing window.
func Snapshot(candles []models.Candle) (models.Technicals, error) {
	if len(candles) < 2 {
		return models.Technicals{}, ErrNotEnoughCandles
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	currentPrice := closes[len(closes)-1]
	prevPrice := closes[len(closes)-2]

	return models.Technicals{
		RSI:                RSI(closes, DefaultRSIPeriod),
		EMA7:               EMA(closes, 7),
		EMA25:              EMA(closes, 25),
		EMA99:              EMA(closes, 99),
		CurrentPrice:       currentPrice,
		PriceChangePercent: (currentPrice - prevPrice) / prevPrice * 100,
	}, nil
}
