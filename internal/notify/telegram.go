package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"serotonyl.ru/wellness-engine/internal/metrics"
)

// TelegramNotifier дублирует события в Telegram-чат сообщества.
type TelegramNotifier struct {
	bot    *telego.Bot
	chatID int64
}

// NewTelegramNotifier создаёт бота по токену. Сеть при создании не трогается.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram-бота: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, ev Event) error {
	msg := tu.Message(tu.ID(n.chatID), FormatTelegram(ev)).
		WithParseMode(telego.ModeHTML)

	if _, err := n.bot.SendMessage(ctx, msg); err != nil {
		metrics.Notifications.WithLabelValues("telegram", "error").Inc()
		return fmt.Errorf("ошибка отправки в Telegram: %w", err)
	}

	metrics.Notifications.WithLabelValues("telegram", "ok").Inc()
	return nil
}

// FormatTelegram собирает HTML-текст сообщения.
func FormatTelegram(ev Event) string {
	icon := "🔔"
	switch ev.Kind {
	case KindBadgeUnlocked:
		icon = "🏅"
	case KindPlantWilting:
		icon = "🥀"
	}
	return fmt.Sprintf("%s <b>%s</b>\n%s\n\n<i>пользователь %s</i>",
		icon, html.EscapeString(ev.Title), html.EscapeString(ev.Body), html.EscapeString(ev.UserID))
}
