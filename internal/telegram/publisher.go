// Package telegram publishes rewritten posts to Telegram channels through
// the Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reposter/internal/platform"
)

// Telegram limits, in characters.
const (
	maxCaptionLen = 1024
	MaxMessageLen = 4096
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
}

// Publisher sends posts to channels the bot is an admin of.
type Publisher struct {
	api  telegramAPI
	gate *platform.Gate
	log  *slog.Logger
}

// New creates a Publisher with the given bot token. Uploads hold gate for
// their whole duration.
func New(token string, gate *platform.Gate, log *slog.Logger) (*Publisher, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Publisher{api: api, gate: gate, log: log}, nil
}

// Send posts text to the channel, with imagePath attached as a photo when
// it is not empty. Text is sent as HTML.
func (p *Publisher) Send(ctx context.Context, channelID, text, imagePath string) error {
	release, err := p.gate.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	chat, err := p.resolve(channelID)
	if err != nil {
		return err
	}

	if imagePath == "" {
		return p.sendText(chat.ID, text)
	}
	if _, err := os.Stat(imagePath); err != nil {
		return fmt.Errorf("image %s: %w", imagePath, err)
	}

	photo := tgbotapi.NewPhoto(chat.ID, tgbotapi.FilePath(imagePath))
	rest := text
	if utf8.RuneCountInString(text) <= maxCaptionLen {
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeHTML
		rest = ""
	}
	if _, err := p.api.Send(photo); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	if rest != "" {
		if err := p.sendText(chat.ID, rest); err != nil {
			return err
		}
	}

	p.log.Info("post published", "channel", channelID, "chat_id", chat.ID, "image", imagePath)
	return nil
}

// SendMessage sends a plain text message to the given chat. Failures are
// logged; notifications are best effort.
func (p *Publisher) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := p.api.Send(msg); err != nil {
		p.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (p *Publisher) sendText(chatID int64, text string) error {
	for _, part := range SplitText(text, MaxMessageLen) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := p.api.Send(msg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func (p *Publisher) resolve(channelID string) (tgbotapi.Chat, error) {
	var cfg tgbotapi.ChatInfoConfig
	if id, err := strconv.ParseInt(strings.TrimSpace(channelID), 10, 64); err == nil {
		cfg.ChatID = id
	} else {
		name, ok := platform.Username(channelID)
		if !ok {
			return tgbotapi.Chat{}, fmt.Errorf("invalid channel name %q: %w", channelID, platform.ErrChannelNotFound)
		}
		cfg.SuperGroupUsername = "@" + name
	}

	chat, err := p.api.GetChat(cfg)
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Message), "not found") {
			return tgbotapi.Chat{}, fmt.Errorf("resolve %q: %w", channelID, platform.ErrChannelNotFound)
		}
		return tgbotapi.Chat{}, fmt.Errorf("resolve %q: %w", channelID, err)
	}
	return chat, nil
}

// SplitText breaks text into chunks of at most limit characters,
// preferring to cut at line breaks.
func SplitText(text string, limit int) []string {
	var parts []string
	for utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		cut := limit
		if i := strings.LastIndex(string(runes[:limit]), "\n"); i > 0 {
			cut = utf8.RuneCountInString(string(runes[:limit])[:i])
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		text = strings.TrimLeft(string(runes[cut:]), "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
