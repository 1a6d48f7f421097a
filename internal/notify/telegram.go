package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends matches straight to the user's chat.
type Telegram struct {
	api sender
}

// NewTelegram logs in with the bot token.
func NewTelegram(token string) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return &Telegram{api: api}, nil
}

func (t *Telegram) OfferMatched(ctx context.Context, u *model.User, o *model.Offer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(u.ChatID, Message(o))
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", u.ChatID, err)
	}
	return nil
}
