package notifier

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier envia resumos de crawl para o dono do bot via Telegram.
// Todo envio é melhor esforço: falhas são reportadas mas nunca críticas.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// Init conecta o bot do Telegram com o token informado
func Init(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN não configurado. Verifique o arquivo .env")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		if err.Error() == "Unauthorized" {
			return nil, fmt.Errorf("token do Telegram inválido ou expirado. Para obter um token, fale com @BotFather no Telegram")
		}
		return nil, fmt.Errorf("erro ao conectar com Telegram: %v", err)
	}

	bot.Debug = false
	log.Printf("Bot autorizado como: %s", bot.Self.UserName)
	return bot, nil
}

// New cria o notificador para o chat informado
func New(bot *tgbotapi.BotAPI, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

// Notify envia uma mensagem com título e conteúdo para o chat do dono
func (n *TelegramNotifier) Notify(title, content string) error {
	msg := tgbotapi.NewMessage(n.chatID, fmt.Sprintf("%s\n\n%s", title, content))
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("erro ao enviar mensagem: %v", err)
	}
	return nil
}
