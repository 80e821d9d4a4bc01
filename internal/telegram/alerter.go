// Package telegram sends moderation alerts to a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"anonchat/backend/internal/models"
	"anonchat/backend/internal/pkg/logx"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI the alerter uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BlockAlerter posts a message to a moderator chat for every issued block.
type BlockAlerter struct {
	bot    Sender
	chatID int64
}

func NewBlockAlerter(bot Sender, chatID int64) *BlockAlerter {
	return &BlockAlerter{bot: bot, chatID: chatID}
}

// Connect logs in to the Bot API with token.
func Connect(token string, chatID int64) (*BlockAlerter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	logx.Info("Authorized on Telegram account", "bot", bot.Self.UserName)
	return NewBlockAlerter(bot, chatID), nil
}

func (a *BlockAlerter) BlockIssued(ctx context.Context, entry models.BlockEntry, counter models.StrikeCounter) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(a.chatID, FormatBlockAlert(entry, counter))
	if _, err := a.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send block alert: %w", err)
	}
	return nil
}

// FormatBlockAlert renders the alert text.
func FormatBlockAlert(entry models.BlockEntry, counter models.StrikeCounter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚫 User %s blocked\n", entry.UserID)
	fmt.Fprintf(&b, "Reason: %s\n", entry.Reason)
	fmt.Fprintf(&b, "Until: %s (%s)\n", entry.ExpiresAt.UTC().Format(time.RFC3339), entry.ExpiresAt.Sub(entry.BlockedAt).Round(time.Second))
	fmt.Fprintf(&b, "Total blocks: %d", counter.TotalBlocks)
	return b.String()
}
