package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"futures-ai-dashboard-go/internal/advisor"
	"futures-ai-dashboard-go/internal/indicator"
	"futures-ai-dashboard-go/internal/ledger"
	"futures-ai-dashboard-go/internal/market"
	"futures-ai-dashboard-go/internal/models"

	"go.uber.org/zap"
)

// Server 是面向浏览器仪表盘的HTTP/WebSocket边界层。
// 它把行情、指标、AI信号和模拟账户操作组装成JSON接口,
// 外部依赖的失败只影响响应, 不会污染账本。
type Server struct {
	cfg      *models.Config
	provider market.Provider
	advisor  advisor.Advisor
	book     *ledger.Ledger
	hub      *TickerHub
	logger   *zap.SugaredLogger

	httpServer *http.Server
}

// NewServer 创建并组装一个新的Server实例
func NewServer(cfg *models.Config, provider market.Provider, adv advisor.Advisor, book *ledger.Ledger, logger *zap.SugaredLogger) *Server {
	s := &Server{
		cfg:      cfg,
		provider: provider,
		advisor:  adv,
		book:     book,
		hub:      NewTickerHub(logger),
		logger:   logger,
	}
	s.httpServer = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: s.routes(),
	}
	return s
}

// routes sets up HTTP routes for the API server.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/klines", s.handleKlines)
	mux.HandleFunc("GET /api/v1/technicals", s.handleTechnicals)
	mux.HandleFunc("GET /api/v1/tickers", s.handleTickers)
	mux.HandleFunc("POST /api/v1/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/v1/account", s.handleAccount)
	mux.HandleFunc("POST /api/v1/account/open", s.handleOpenPosition)
	mux.HandleFunc("POST /api/v1/account/close", s.handleClosePosition)
	mux.HandleFunc("POST /api/v1/account/reset", s.handleReset)
	mux.HandleFunc("GET /ws/tickers", s.hub.HandleWS)

	return mux
}

// Start 启动行情刷新循环并开始监听HTTP请求, 阻塞直到服务关闭。
func (s *Server) Start() error {
	go s.refreshLoop()

	s.logger.Infof("HTTP服务已启动, 监听 %s", s.cfg.ListenAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅地关闭HTTP服务和行情刷新循环
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Stop()
	return s.httpServer.Shutdown(ctx)
}

// refreshLoop 周期性拉取行情列表, 缓存最新一份并广播给所有WebSocket客户端。
// 拉取失败时保留上一份数据。
func (s *Server) refreshLoop() {
	interval := time.Duration(s.cfg.TickerRefreshSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.refreshTickers()

	for {
		select {
		case <-ticker.C:
			s.refreshTickers()
		case <-s.hub.stopChan:
			return
		}
	}
}

func (s *Server) refreshTickers() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	tickers, err := s.provider.Tickers(ctx)
	if err != nil {
		s.logger.Warnf("刷新行情列表失败: %v", err)
		return
	}
	s.hub.Publish(tickers)
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleKlines(w http.ResponseWriter, r *http.Request) {
	symbol, interval, limit := s.klineParams(r)

	candles, err := s.provider.Klines(r.Context(), symbol, interval, limit)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, candles)
}

func (s *Server) handleTechnicals(w http.ResponseWriter, r *http.Request) {
	symbol, interval, limit := s.klineParams(r)

	candles, err := s.provider.Klines(r.Context(), symbol, interval, limit)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	technicals, err := indicator.Snapshot(candles)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, technicals)
}

func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Latest())
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("无法解析请求体: %w", err))
		return
	}
	if req.Symbol == "" {
		req.Symbol = s.cfg.Symbol
	}

	candles, err := s.provider.Klines(r.Context(), req.Symbol, s.cfg.Interval, s.cfg.KlineLimit)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	technicals, err := indicator.Snapshot(candles)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	analysis, err := s.advisor.Analyze(r.Context(), req.Symbol, technicals, candles)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	account := s.book.Account()
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleOpenPosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol   string  `json:"symbol"`
		Side     string  `json:"side"`
		Margin   float64 `json:"margin"`
		Leverage int     `json:"leverage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("无法解析请求体: %w", err))
		return
	}
	if req.Symbol == "" {
		req.Symbol = s.cfg.Symbol
	}

	// 开仓价取该交易对的最新收盘价
	entryPrice, err := s.quote(r.Context(), req.Symbol)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	position, err := s.book.OpenPosition(req.Symbol, models.PositionType(req.Side), req.Margin, req.Leverage, entryPrice)
	if err != nil {
		s.writeError(w, ledgerStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, position)
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("无法解析请求体: %w", err))
		return
	}

	// 按持仓自身的交易对询价, 与当前展示的交易对无关
	trade, err := s.book.ClosePosition(req.ID, func(symbol string) (float64, error) {
		return s.quote(r.Context(), symbol)
	})
	if err != nil {
		if errors.Is(err, ledger.ErrPositionNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	// 确认弹窗是前端的职责, 服务端无条件执行
	account := s.book.Reset()
	writeJSON(w, http.StatusOK, account)
}

// quote resolves the most recent close for a symbol.
func (s *Server) quote(ctx context.Context, symbol string) (float64, error) {
	candles, err := s.provider.Klines(ctx, symbol, s.cfg.Interval, 2)
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		return 0, fmt.Errorf("没有 %s 的K线数据", symbol)
	}
	return candles[len(candles)-1].Close, nil
}

func (s *Server) klineParams(r *http.Request) (symbol, interval string, limit int) {
	q := r.URL.Query()

	symbol = q.Get("symbol")
	if symbol == "" {
		symbol = s.cfg.Symbol
	}
	interval = q.Get("interval")
	if interval == "" {
		interval = s.cfg.Interval
	}
	limit = s.cfg.KlineLimit
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return symbol, interval, limit
}

// ledgerStatus maps ledger rejection reasons onto HTTP status codes.
func ledgerStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidMargin),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInvalidLeverage),
		errors.Is(err, ledger.ErrInvalidPrice),
		errors.Is(err, ledger.ErrInvalidPositionType):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrPositionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Errorf("请求处理失败: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
