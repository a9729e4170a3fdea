package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"futures-ai-dashboard-go/internal/advisor"
	"futures-ai-dashboard-go/internal/config"
	"futures-ai-dashboard-go/internal/ledger"
	"futures-ai-dashboard-go/internal/logger"
	"futures-ai-dashboard-go/internal/market"
	"futures-ai-dashboard-go/internal/models"
	"futures-ai-dashboard-go/internal/persistence"
	"futures-ai-dashboard-go/internal/reporter"
	"futures-ai-dashboard-go/internal/server"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	flag.Parse()

	// 先用默认配置初始化一个临时logger, 以便加载阶段也能记录日志
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	// --- 加载 .env 文件 ---
	if err := godotenv.Load(); err != nil {
		logger.S().Info("未找到 .env 文件，将从系统环境变量中读取。")
	} else {
		logger.S().Info("成功从 .env 文件加载配置。")
	}

	// --- 加载 JSON 配置 ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Fatalf("无法加载配置文件: %v", err)
	}

	// --- 使用文件中的配置重新初始化日志 ---
	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		// 缺少Key时AI信号不可用, 但行情与模拟交易照常工作
		logger.S().Warn("GEMINI_API_KEY 未设置, AI信号功能将不可用。")
	}

	// --- 初始化持久化层 ---
	repo, err := persistence.NewBadgerRepository(cfg.DBPath)
	if err != nil {
		logger.S().Fatalf("无法打开数据库 %s: %v", cfg.DBPath, err)
	}
	defer repo.Close()

	// --- 组装各组件 ---
	book := ledger.NewLedger(repo, cfg.InitialBalance, cfg.MaxLeverage, logger.S())
	provider := market.NewBinanceProvider(cfg.MaxTickerPrice)
	gemini := advisor.NewGeminiAdvisor(geminiKey, cfg.GeminiModel, logger.S())

	srv := server.NewServer(cfg, provider, gemini, book, logger.S())

	// --- 启动并等待中断信号 ---
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logger.S().Fatalf("HTTP服务异常退出: %v", err)
		}
	case sig := <-quit:
		logger.S().Infof("收到信号 %s, 开始优雅退出...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.S().Errorf("关闭HTTP服务失败: %v", err)
	}

	// 退出前打印本次会话的账户报告
	reporter.PrintReport(book.Account())
	logger.S().Info("服务已停止, 账户状态已保存。")
}
