package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/Alias1177/PickGate/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Notifier is told about every HARD_STOP decision
type Notifier interface {
	NotifyHardStop(ctx context.Context, rec models.DecisionRecord) error
}

// Nop discards every alert
type Nop struct{}

// NotifyHardStop implements Notifier
func (Nop) NotifyHardStop(context.Context, models.DecisionRecord) error { return nil }

// sender is the part of *tgbotapi.BotAPI the notifier needs
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts hard-stop alerts to one chat
type Telegram struct {
	bot    sender
	chatID int64
	logger zerolog.Logger
}

// NewTelegram connects to the bot API with token
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is not set")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return newTelegram(bot, chatID), nil
}

func newTelegram(bot sender, chatID int64) *Telegram {
	return &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "telegram_notifier").Logger(),
	}
}

// NotifyHardStop sends the alert. Non hard-stop records are ignored.
func (t *Telegram) NotifyHardStop(ctx context.Context, rec models.DecisionRecord) error {
	if rec.Status != models.StatusHardStop {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatHardStop(rec))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send hard-stop alert: %w", err)
	}

	t.logger.Info().
		Str("trace_id", rec.TraceID).
		Str("decision_id", rec.DecisionID).
		Msg("Hard-stop alert sent")
	return nil
}

// FormatHardStop renders the Markdown alert body
func FormatHardStop(rec models.DecisionRecord) string {
	var b strings.Builder
	b.WriteString("🛑 *HARD STOP*\n\n")
	fmt.Fprintf(&b, "*Run:* `%s`\n", rec.RunID)
	fmt.Fprintf(&b, "*Trace:* `%s`\n", rec.TraceID)
	fmt.Fprintf(&b, "*Decision:* `%s`\n", rec.DecisionID)
	if rec.HardStopReason != "" {
		fmt.Fprintf(&b, "*Conditions:* %s\n", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, rec.HardStopReason))
	}
	if rec.RecommendedAction != "" {
		fmt.Fprintf(&b, "\n%s", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, rec.RecommendedAction))
	}
	return b.String()
}
