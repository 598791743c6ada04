package bot

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"crawler-ofertas/internal/database"
	"crawler-ofertas/internal/models"
	"crawler-ofertas/internal/orchestrator"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// GetAuthorizedChatID retorna o Chat ID autorizado (se configurado)
func GetAuthorizedChatID() (int64, bool) {
	chatIDStr := os.Getenv("TELEGRAM_CHAT_ID")
	if chatIDStr == "" {
		return 0, false
	}

	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return 0, false
	}

	return chatID, true
}

// SetupCommands configura os handlers de comandos do bot
func SetupCommands(bot *tgbotapi.BotAPI, db *database.DB, orch *orchestrator.Orchestrator) {
	authorizedChatID, hasAuth := GetAuthorizedChatID()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		text := update.Message.Text
		if text == "" {
			continue
		}

		parts := strings.Fields(text)
		if len(parts) == 0 {
			continue
		}

		command := strings.ToLower(parts[0])
		// Remover @botname se presente
		if idx := strings.Index(command, "@"); idx > 0 {
			command = command[:idx]
		}

		// Comandos públicos (não precisam de autorização)
		isPublicCommand := command == "/start" || command == "/help"

		if !isPublicCommand && hasAuth && update.Message.Chat.ID != authorizedChatID {
			reply(bot, update.Message.Chat.ID, "Você não está autorizado a usar este bot.")
			continue
		}

		chatID := update.Message.Chat.ID
		args := parts[1:]

		switch command {
		case "/start", "/help":
			reply(bot, chatID, helpText())
		case "/crawl":
			handleCrawl(bot, chatID, orch, args)
		case "/refresh":
			handleRefresh(bot, chatID, orch)
		case "/status":
			handleStatus(bot, chatID, db, orch)
		case "/parar":
			if orch.Stop() {
				reply(bot, chatID, "Parada solicitada. O job encerra no próximo ponto de verificação.")
			} else {
				reply(bot, chatID, "Nenhum job em execução.")
			}
		case "/reset":
			count, err := orch.ResetStuckJobs()
			if err != nil {
				reply(bot, chatID, fmt.Sprintf("Erro ao resetar jobs: %v", err))
			} else {
				reply(bot, chatID, fmt.Sprintf("%d job(s) preso(s) marcados como stopped.", count))
			}
		case "/notificacoes":
			handleNotifications(bot, chatID, db)
		}
	}
}

func helpText() string {
	return "Comandos disponíveis:\n" +
		"/crawl [categoria] - inicia um crawl (catálogo inteiro se omitida)\n" +
		"/refresh - recarrega produtos conhecidos sem descoberta\n" +
		"/status - job ativo e execuções recentes\n" +
		"/parar - solicita a parada do job ativo\n" +
		"/reset - marca jobs presos como stopped\n" +
		"/notificacoes - últimas notificações não lidas"
}

func handleCrawl(bot *tgbotapi.BotAPI, chatID int64, orch *orchestrator.Orchestrator, args []string) {
	category := ""
	if len(args) > 0 {
		category = args[0]
	}

	jobID, err := orch.StartCrawl(orchestrator.Options{
		JobType:     models.JobTypeManual,
		Category:    category,
		DiscoverNew: true,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrJobRunning) {
			reply(bot, chatID, "Já existe um crawl em execução. Use /status para acompanhar.")
		} else {
			reply(bot, chatID, fmt.Sprintf("Erro ao iniciar crawl: %v", err))
		}
		return
	}
	reply(bot, chatID, fmt.Sprintf("Crawl iniciado (job %d). Use /status para acompanhar.", jobID))
}

func handleRefresh(bot *tgbotapi.BotAPI, chatID int64, orch *orchestrator.Orchestrator) {
	jobID, err := orch.StartCrawl(orchestrator.Options{
		JobType:     models.JobTypeManual,
		DiscoverNew: false,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrJobRunning) {
			reply(bot, chatID, "Já existe um crawl em execução. Use /status para acompanhar.")
		} else {
			reply(bot, chatID, fmt.Sprintf("Erro ao iniciar refresh: %v", err))
		}
		return
	}
	reply(bot, chatID, fmt.Sprintf("Refresh iniciado (job %d).", jobID))
}

func handleStatus(bot *tgbotapi.BotAPI, chatID int64, db *database.DB, orch *orchestrator.Orchestrator) {
	var sb strings.Builder

	if jobID, ok := orch.ActiveJobID(); ok {
		sb.WriteString(fmt.Sprintf("Job %d em execução.\n\n", jobID))
	} else {
		sb.WriteString("Nenhum job em execução.\n\n")
	}

	jobs, err := db.ListRecentJobs(5)
	if err != nil {
		reply(bot, chatID, fmt.Sprintf("Erro ao listar jobs: %v", err))
		return
	}

	if len(jobs) == 0 {
		sb.WriteString("Nenhuma execução registrada.")
	} else {
		sb.WriteString("Execuções recentes:\n")
		for _, job := range jobs {
			sb.WriteString(fmt.Sprintf("#%d %s [%s] %s - %d processados, %d novos, %d falhas\n",
				job.ID, job.JobType, job.Category, job.Status,
				job.CrawledProducts, job.NewProducts, job.FailedProducts))
		}
	}

	reply(bot, chatID, sb.String())
}

func handleNotifications(bot *tgbotapi.BotAPI, chatID int64, db *database.DB) {
	notifications, err := db.ListUnreadNotifications(10)
	if err != nil {
		reply(bot, chatID, fmt.Sprintf("Erro ao listar notificações: %v", err))
		return
	}

	if len(notifications) == 0 {
		reply(bot, chatID, "Nenhuma notificação não lida.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Notificações não lidas:\n\n")
	for _, n := range notifications {
		sb.WriteString(fmt.Sprintf("[%s] %s\n%s\n\n", n.Type, n.Title, n.Message))
	}
	reply(bot, chatID, sb.String())
}

func reply(bot *tgbotapi.BotAPI, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	bot.Send(msg)
}
