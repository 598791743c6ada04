package main

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crawler-ofertas/config"
	"crawler-ofertas/internal/bot"
	"crawler-ofertas/internal/database"
	"crawler-ofertas/internal/fetcher"
	"crawler-ofertas/internal/models"
	"crawler-ofertas/internal/notifier"
	"crawler-ofertas/internal/orchestrator"

	"github.com/joho/godotenv"
)

func main() {
	// Carregar variáveis de ambiente
	if err := godotenv.Load(); err != nil {
		log.Println("Arquivo .env não encontrado, usando variáveis de ambiente do sistema")
	}

	// Carregar configurações
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Erro ao carregar configurações: %v", err)
	}

	// Inicializar banco de dados
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Erro ao inicializar banco de dados: %v", err)
	}
	defer db.Close()

	// Telegram é opcional: sem token, o processo roda só com o agendador
	var ownerNotifier orchestrator.OwnerNotifier
	if cfg.TelegramBotToken != "" {
		telegramBot, err := notifier.Init(cfg.TelegramBotToken)
		if err != nil {
			log.Fatalf("Erro ao inicializar bot do Telegram: %v", err)
		}
		if cfg.TelegramChatID != 0 {
			ownerNotifier = notifier.New(telegramBot, cfg.TelegramChatID)
		}

		orch := newOrchestrator(db, ownerNotifier, cfg)
		startup(orch, cfg)

		// Loop de comandos do bot segura o processo até o sinal de encerramento
		go bot.SetupCommands(telegramBot, db, orch)
		waitForShutdown()
		return
	}

	orch := newOrchestrator(db, nil, cfg)
	startup(orch, cfg)
	waitForShutdown()
}

func newOrchestrator(db *database.DB, ownerNotifier orchestrator.OwnerNotifier, cfg *config.Config) *orchestrator.Orchestrator {
	newFetcher := func() orchestrator.Fetcher {
		return fetcher.New(cfg.Headless, cfg.PageTimeout)
	}

	return orchestrator.New(db, newFetcher, ownerNotifier, orchestrator.Config{
		BaseURL:  cfg.SiteBaseURL,
		MaxPages: cfg.MaxPagesPerCategory,
		DelayMin: cfg.DelayMin,
		DelayMax: cfg.DelayMax,
	})
}

func startup(orch *orchestrator.Orchestrator, cfg *config.Config) {
	// Varredura de jobs presos: qualquer job deixado em running por uma
	// queda do processo é forçado para stopped antes de aceitar novos crawls
	if _, err := orch.ResetStuckJobs(); err != nil {
		log.Printf("Erro na varredura de jobs presos: %v", err)
	}

	go scheduleLoop(orch, cfg.CrawlInterval)
}

// scheduleLoop dispara um crawl agendado a cada intervalo configurado
func scheduleLoop(orch *orchestrator.Orchestrator, interval time.Duration) {
	log.Printf("Agendador iniciado. Crawl a cada %v", interval)

	trigger := func() {
		_, err := orch.StartCrawl(orchestrator.Options{
			JobType:     models.JobTypeScheduled,
			DiscoverNew: true,
		})
		if err != nil {
			if errors.Is(err, orchestrator.ErrJobRunning) {
				log.Println("Crawl agendado pulado: já existe job em execução")
			} else {
				log.Printf("Erro ao disparar crawl agendado: %v", err)
			}
		}
	}

	// Disparar imediatamente na primeira execução
	trigger()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		trigger()
	}
}

func waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Encerrando crawler...")
}
