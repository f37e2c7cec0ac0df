package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// TelegramNotifier posts alerts to a Telegram chat using HTML parse mode.
type TelegramNotifier struct {
	chatID  string
	client  *tgbot.Bot
	initErr error
}

// NewTelegramNotifier creates a Telegram notifier. apiBase may be empty to use
// the public Bot API. Configuration errors surface on Send.
func NewTelegramNotifier(botToken, chatID, apiBase string) *TelegramNotifier {
	n := &TelegramNotifier{chatID: strings.TrimSpace(chatID)}

	if strings.TrimSpace(botToken) == "" {
		n.initErr = errors.New("telegram bot token is required")
		return n
	}
	if n.chatID == "" {
		n.initErr = errors.New("telegram chat_id is required")
		return n
	}

	options := []tgbot.Option{tgbot.WithSkipGetMe()}
	if apiBase != "" {
		options = append(options, tgbot.WithServerURL(strings.TrimRight(apiBase, "/")))
	}
	client, err := tgbot.New(botToken, options...)
	if err != nil {
		n.initErr = fmt.Errorf("init telegram bot: %w", err)
		return n
	}
	n.client = client
	return n
}

func (n *TelegramNotifier) Name() string { return "telegram" }

func (n *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	if n.initErr != nil {
		return n.initErr
	}

	sent, err := n.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      alert.Text,
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return errors.New("telegram send: empty message id")
	}
	return nil
}
