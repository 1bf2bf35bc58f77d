package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sent identifies a delivered message. Its MessageID is what /edit needs.
type Sent struct {
	MessageID int
	ChatID    int64
	Date      time.Time
	Text      string
}

// Messenger delivers HTML messages and files to chats.
type Messenger interface {
	SendHTML(ctx context.Context, chatID int64, text string, replyTo int) (Sent, error)
	EditHTML(ctx context.Context, chatID int64, messageID int, text string) error
	SendDocument(ctx context.Context, chatID int64, name string, data []byte, caption string) (Sent, error)
}

// TelegramMessenger is a Messenger backed by the Telegram Bot API.
type TelegramMessenger struct {
	api *tgbotapi.BotAPI
}

// NewTelegramMessenger wraps an authorised Bot API client.
func NewTelegramMessenger(api *tgbotapi.BotAPI) *TelegramMessenger {
	return &TelegramMessenger{api: api}
}

// SendHTML sends text parsed as HTML. replyTo of 0 sends a plain message.
func (t *TelegramMessenger) SendHTML(ctx context.Context, chatID int64, text string, replyTo int) (Sent, error) {
	if err := ctx.Err(); err != nil {
		return Sent{}, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyToMessageID = replyTo

	m, err := t.api.Send(msg)
	if err != nil {
		return Sent{}, fmt.Errorf("failed to send message: %w", err)
	}
	return sentFrom(m), nil
}

// EditHTML replaces the text of a previously sent message.
func (t *TelegramMessenger) EditHTML(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML

	if _, err := t.api.Send(edit); err != nil {
		return fmt.Errorf("failed to edit message %d: %w", messageID, err)
	}
	return nil
}

// SendDocument uploads data as a file named name.
func (t *TelegramMessenger) SendDocument(ctx context.Context, chatID int64, name string, data []byte, caption string) (Sent, error) {
	if err := ctx.Err(); err != nil {
		return Sent{}, err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption

	m, err := t.api.Send(doc)
	if err != nil {
		return Sent{}, fmt.Errorf("failed to send document: %w", err)
	}
	return sentFrom(m), nil
}

func sentFrom(m tgbotapi.Message) Sent {
	s := Sent{MessageID: m.MessageID, Date: m.Time(), Text: m.Text}
	if m.Chat != nil {
		s.ChatID = m.Chat.ID
	}
	return s
}
