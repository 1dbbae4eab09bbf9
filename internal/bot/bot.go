// Package bot implements the Telegram operator bot that manages watches
// and drives scans, rewrites and publishing from a chat.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reposter/internal/config"
	"reposter/internal/model"
	"reposter/internal/pipeline"
	"reposter/internal/storage"
	"reposter/internal/telegram"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Operator runs the pipeline operations the bot exposes.
type Operator interface {
	Scan(ctx context.Context, req pipeline.ScanRequest) (*pipeline.ScanResult, error)
	Transform(ctx context.Context, messageID, promptID int64) (*model.Rewrite, error)
	EditRewrite(ctx context.Context, rewriteID int64, text string) (*model.Rewrite, error)
	Publish(ctx context.Context, rewriteID int64, channel string) error
}

// Bot is the Telegram bot that handles operator commands.
type Bot struct {
	api   telegramAPI
	store storage.Storage
	ops   Operator
	cfg   *config.Config
	log   *slog.Logger
}

// New creates a Bot with the given Telegram token, storage, and config.
func New(token string, store storage.Storage, ops Operator, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:   api,
		store: store,
		ops:   ops,
		cfg:   cfg,
		log:   log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				if !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
					continue
				}
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat, split into several
// messages when it exceeds the Telegram length limit.
func (b *Bot) SendMessage(chatID int64, text string) {
	for _, part := range telegram.SplitText(text, telegram.MaxMessageLen) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.DisableWebPagePreview = true
		if _, err := b.api.Send(msg); err != nil {
			b.log.Error("send message", "chat_id", chatID, "error", err)
			return
		}
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "watch":
		b.handleWatch(ctx, chatID, args)
	case "list":
		b.handleList(ctx, chatID)
	case "info":
		b.handleInfo(ctx, chatID, args)
	case "remove":
		b.handleRemove(ctx, chatID, args)
	case "interval":
		b.handleInterval(ctx, chatID, args)
	case "pause":
		b.handleSetActive(ctx, chatID, args, false)
	case "resume":
		b.handleSetActive(ctx, chatID, args, true)
	case "include":
		b.handleKeywords(ctx, chatID, args, true)
	case "exclude":
		b.handleKeywords(ctx, chatID, args, false)
	case cmdScan:
		b.handleScan(ctx, chatID, args)
	case "messages":
		b.handleMessages(ctx, chatID)
	case cmdTransform:
		b.handleTransform(ctx, chatID, args)
	case "edit":
		b.handleEdit(ctx, chatID, args)
	case "publish":
		b.handlePublish(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
