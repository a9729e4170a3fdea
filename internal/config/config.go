package config

import (
	"encoding/json"
	"fmt"
	"os"

	"futures-ai-dashboard-go/internal/models"
)

// LoadConfig 从指定路径加载JSON配置文件并解析到Config结构体中,
// 缺省字段会被填充为默认值。
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := &models.Config{}
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, err
	}

	applyDefaults(config)

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyDefaults 填充未配置的字段
func applyDefaults(cfg *models.Config) {
	if cfg.Symbol == "" {
		cfg.Symbol = "DOGEUSDT"
	}
	if cfg.Interval == "" {
		cfg.Interval = "1h"
	}
	if cfg.KlineLimit <= 0 {
		cfg.KlineLimit = 100
	}
	if cfg.InitialBalance <= 0 {
		cfg.InitialBalance = 10000
	}
	if cfg.MaxLeverage < 0 {
		cfg.MaxLeverage = 0
	}
	if cfg.MaxTickerPrice <= 0 {
		cfg.MaxTickerPrice = 1.0
	}
	if cfg.TickerRefreshSec <= 0 {
		cfg.TickerRefreshSec = 10
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "data/account_db"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.LogConfig.Output == "" {
		cfg.LogConfig.Output = "console"
	}
}

// validate 检查无法通过默认值修复的配置错误
func validate(cfg *models.Config) error {
	if cfg.KlineLimit < 2 {
		// 技术指标至少需要两根K线
		return fmt.Errorf("kline_limit 必须 >= 2, 当前为 %d", cfg.KlineLimit)
	}
	return nil
}
