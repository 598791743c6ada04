package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config contém as configurações da aplicação
type Config struct {
	DatabasePath         string
	SiteBaseURL          string
	MaxPagesPerCategory  int
	DelayMin             time.Duration
	DelayMax             time.Duration
	PageTimeout          time.Duration
	Headless             bool
	CrawlIntervalMinutes int
	CrawlInterval        time.Duration
	TelegramBotToken     string // opcional: sem token, o bot e o resumo são desligados
	TelegramChatID       int64
}

// Load carrega as configurações das variáveis de ambiente
func Load() (*Config, error) {
	baseURL := os.Getenv("SITE_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("SITE_BASE_URL não configurado")
	}

	cfg := &Config{
		DatabasePath:         "./crawler.db",
		SiteBaseURL:          baseURL,
		MaxPagesPerCategory:  10,
		DelayMin:             1500 * time.Millisecond,
		DelayMax:             4000 * time.Millisecond,
		PageTimeout:          45 * time.Second,
		Headless:             true,
		CrawlIntervalMinutes: 360,
	}

	if path := os.Getenv("DATABASE_PATH"); path != "" {
		cfg.DatabasePath = path
	}

	if v := os.Getenv("MAX_PAGES_PER_CATEGORY"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.MaxPagesPerCategory = parsed
		}
	}

	if v := os.Getenv("RATE_LIMIT_DELAY_MIN_MS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			cfg.DelayMin = time.Duration(parsed) * time.Millisecond
		}
	}

	if v := os.Getenv("RATE_LIMIT_DELAY_MAX_MS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			cfg.DelayMax = time.Duration(parsed) * time.Millisecond
		}
	}
	if cfg.DelayMax < cfg.DelayMin {
		cfg.DelayMax = cfg.DelayMin
	}

	if v := os.Getenv("PAGE_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.PageTimeout = time.Duration(parsed) * time.Second
		}
	}

	if v := os.Getenv("HEADLESS"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Headless = parsed
		}
	}

	// Intervalo entre crawls agendados
	if v := os.Getenv("CRAWL_INTERVAL_MINUTES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.CrawlIntervalMinutes = parsed
		}
	}
	cfg.CrawlInterval = time.Duration(cfg.CrawlIntervalMinutes) * time.Minute

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	// Chat ID é opcional (usado para autorização e resumo dos jobs)
	if chatIDStr := os.Getenv("TELEGRAM_CHAT_ID"); chatIDStr != "" {
		if chatID, err := strconv.ParseInt(chatIDStr, 10, 64); err == nil {
			cfg.TelegramChatID = chatID
		}
	}

	return cfg, nil
}
