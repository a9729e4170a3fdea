package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"futures-ai-dashboard-go/internal/models"

	"go.uber.org/zap"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// candleSummaryCount is how many trailing candles go into the prompt.
const candleSummaryCount = 10

// GeminiAdvisor 通过 Gemini generateContent 接口生成结构化交易信号。
type GeminiAdvisor struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// NewGeminiAdvisor 创建一个新的 GeminiAdvisor 实例
func NewGeminiAdvisor(apiKey, model string, logger *zap.SugaredLogger) *GeminiAdvisor {
	return &GeminiAdvisor{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultGeminiBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// generateContent request/response wire format.

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string        `json:"responseMimeType"`
	ResponseSchema   *geminiSchema `json:"responseSchema,omitempty"`
}

type geminiSchema struct {
	Type       string                  `json:"type"`
	Properties map[string]geminiSchema `json:"properties,omitempty"`
	Required   []string                `json:"required,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// analysisSchema constrains the model to the Analysis JSON shape.
var analysisSchema = &geminiSchema{
	Type: "OBJECT",
	Properties: map[string]geminiSchema{
		"signal":              {Type: "STRING"},
		"confidence":          {Type: "NUMBER"},
		"reasoning":           {Type: "STRING"},
		"suggestedEntry":      {Type: "NUMBER"},
		"suggestedTakeProfit": {Type: "NUMBER"},
		"suggestedStopLoss":   {Type: "NUMBER"},
		"riskRewardRatio":     {Type: "STRING"},
	},
	Required: []string{
		"signal", "confidence", "reasoning",
		"suggestedEntry", "suggestedTakeProfit", "suggestedStopLoss", "riskRewardRatio",
	},
}

// Analyze 把行情快照交给模型, 返回结构化的信号建议。
func (g *GeminiAdvisor) Analyze(ctx context.Context, symbol string, technicals models.Technicals, candles []models.Candle) (*models.Analysis, error) {
	prompt := buildPrompt(symbol, technicals, candles)
	g.logger.Debugf("请求 %s 对 %s 的分析, 当前价 %v", g.model, symbol, technicals.CurrentPrice)

	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   analysisSchema,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("执行请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AI请求失败, 状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}

	return parseAnalysis(body)
}

// buildPrompt assembles the market snapshot the model reasons over: the
// technicals plus a summary of the last few candles.
func buildPrompt(symbol string, t models.Technicals, candles []models.Candle) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze the following market data for %s on Binance USDT-M futures.\n", symbol)
	b.WriteString("Give a concise technical read and a clear trading signal.\n\n")

	b.WriteString("Current data:\n")
	fmt.Fprintf(&b, "- Price: %v\n", t.CurrentPrice)
	fmt.Fprintf(&b, "- 24h change: %.2f%%\n", t.PriceChangePercent)
	fmt.Fprintf(&b, "- RSI(14): %.2f\n", t.RSI)
	fmt.Fprintf(&b, "- EMA7: %.6f\n", t.EMA7)
	fmt.Fprintf(&b, "- EMA25: %.6f\n", t.EMA25)
	fmt.Fprintf(&b, "- EMA99: %.6f\n", t.EMA99)

	b.WriteString("\nRecent closes:\n")
	start := len(candles) - candleSummaryCount
	if start < 0 {
		start = 0
	}
	for _, c := range candles[start:] {
		fmt.Fprintf(&b, "time: %s, close: %v, volume: %.2f\n",
			time.UnixMilli(c.Time).UTC().Format(time.RFC3339), c.Close, c.Volume)
	}

	b.WriteString("\nFocus on price action, trend exhaustion, and indicator alignment.\n")
	b.WriteString("Be specific about the entry point, stop loss, and take profit target.\n")
	b.WriteString("signal must be one of STRONG_BUY, BUY, NEUTRAL, SELL, STRONG_SELL; confidence is 0-100.\n")

	return b.String()
}

// parseAnalysis unwraps the candidates envelope and decodes the schema-shaped
// JSON the model was constrained to.
func parseAnalysis(body []byte) (*models.Analysis, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("无法解析AI响应: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("AI响应中没有候选内容")
	}

	text := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)

	var analysis models.Analysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return nil, fmt.Errorf("无法解析信号JSON: %w", err)
	}

	switch analysis.Signal {
	case models.SignalStrongBuy, models.SignalBuy, models.SignalNeutral, models.SignalSell, models.SignalStrongSell:
	default:
		return nil, fmt.Errorf("未知的信号值: %q", analysis.Signal)
	}

	return &analysis, nil
}
