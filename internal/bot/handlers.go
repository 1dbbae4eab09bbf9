package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reposter/internal/generator"
	"reposter/internal/model"
	"reposter/internal/pipeline"
	"reposter/internal/scanner"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Reposter!

Watch Telegram channels, collect posts matching your keywords, rewrite them with AI and publish the result.

Quick start:
1. /watch <channel> - scan a channel periodically
2. /include <id> <words> - keep only posts with these words
3. /scan <id> - scan now, then /messages and /transform

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Watch management:
/watch <channel> [min] - add a watch (default every 60 min)
/list - show all watches
/info <id> - watch details
/remove <id> - delete a watch
/interval <id> <min> - set scan interval (1-1440)
/pause <id> - pause scanning
/resume <id> - resume scanning
/include <id> [words] - comma separated keywords, any must occur
/exclude <id> [words] - comma separated keywords that reject a post

Posts:
/scan <id> - scan a watched channel now
/messages - recent stored messages
/transform <message_id> [prompt_id] - rewrite a message with AI
/edit <rewrite_id> <text> - replace the text of a rewrite
/publish <rewrite_id> <channel> - post a rewrite

Keywords are matched case-insensitively. An empty list clears them.`)
}

func (b *Bot) handleWatch(ctx context.Context, chatID int64, args string) {
	wa, err := ParseWatchArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	w := &model.Watch{
		Channel:         pipeline.ChannelKey(wa.Channel),
		IntervalMinutes: wa.IntervalMinutes,
		IsActive:        true,
	}
	if err := b.store.CreateWatch(ctx, w); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save watch: %v", err))
		return
	}

	b.reply(chatID, fmt.Sprintf("Watch added!\n#%d %s (every %d min)\nNo keywords yet. Use /include, /exclude to add them.",
		w.ID, w.Channel, w.IntervalMinutes))
}

func (b *Bot) handleList(ctx context.Context, chatID int64) {
	watches, err := b.store.ListWatches(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatWatchList(watches))
}

func (b *Bot) handleInfo(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /info <id>")
		return
	}

	w, err := b.store.GetWatch(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Watch #%d not found.", id))
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatWatchInfo(w))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Scan now", fmt.Sprintf("%s:%d", cmdScan, id)),
			tgbotapi.NewInlineKeyboardButtonData("Delete", fmt.Sprintf("delete_confirm:%d", id)),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send watch info", "error", err)
	}
}

func (b *Bot) handleRemove(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /remove <id>")
		return
	}

	w, err := b.store.GetWatch(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Watch #%d not found.", id))
		return
	}

	if err := b.store.DeleteWatch(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error deleting watch: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Watch #%d \"%s\" deleted.", id, w.Channel))
}

func (b *Bot) handleInterval(ctx context.Context, chatID int64, args string) {
	id, mins, err := ParseIntervalArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	w, err := b.store.GetWatch(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Watch #%d not found.", id))
		return
	}

	w.IntervalMinutes = mins
	if err := b.store.UpdateWatch(ctx, w); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Watch #%d interval set to %d min.", id, mins))
}

func (b *Bot) handleSetActive(ctx context.Context, chatID int64, args string, active bool) {
	verb, done := "pause", "paused"
	if active {
		verb, done = "resume", "resumed"
	}

	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /%s <id>", verb))
		return
	}

	w, err := b.store.GetWatch(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Watch #%d not found.", id))
		return
	}

	w.IsActive = active
	if err := b.store.UpdateWatch(ctx, w); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Watch #%d \"%s\" %s.", id, w.Channel, done))
}

func (b *Bot) handleKeywords(ctx context.Context, chatID int64, args string, include bool) {
	id, terms, err := ParseKeywordArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	w, err := b.store.GetWatch(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Watch #%d not found.", id))
		return
	}

	kind := "Exclude"
	if include {
		kind = "Include"
		w.Include = terms
	} else {
		w.Exclude = terms
	}
	if err := b.store.UpdateWatch(ctx, w); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("%s keywords of #%d \"%s\": %s", kind, w.ID, w.Channel, keywordsLabel(terms)))
}

func (b *Bot) handleScan(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /scan <id>")
		return
	}

	w, err := b.store.GetWatch(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Watch #%d not found.", id))
		return
	}

	res, err := b.ops.Scan(ctx, pipeline.ScanRequest{
		Channel: w.Channel,
		Mode:    model.ScanContinue,
		Policy:  w.Policy(),
	})
	switch {
	case errors.Is(err, scanner.ErrChannelNotFound):
		b.reply(chatID, fmt.Sprintf("Channel \"%s\" of watch #%d was not found.", w.Channel, w.ID))
		return
	case err != nil:
		b.log.Error("scan watch", "watch_id", w.ID, "channel", w.Channel, "error", err)
		b.reply(chatID, fmt.Sprintf("Scan failed: %v", err))
		return
	}

	if len(res.Messages) == 0 && !res.Gap {
		b.reply(chatID, fmt.Sprintf("No new matching messages in #%d \"%s\".", w.ID, w.Channel))
		return
	}
	b.reply(chatID, pipeline.Report(res))
}

func (b *Bot) handleMessages(ctx context.Context, chatID int64) {
	msgs, err := b.store.RecentMessages(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(msgs) == 0 {
		b.reply(chatID, FormatMessageList(msgs))
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, m := range msgs {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Transform #%d", m.ID), fmt.Sprintf("%s:%d", cmdTransform, m.ID)),
		))
	}
	msg := tgbotapi.NewMessage(chatID, FormatMessageList(msgs))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message list", "error", err)
	}
}

func (b *Bot) handleTransform(ctx context.Context, chatID int64, args string) {
	msgID, promptID, err := ParseTransformArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	b.reply(chatID, fmt.Sprintf("Rewriting message #%d...", msgID))
	rw, err := b.ops.Transform(ctx, msgID, promptID)
	if err != nil && !errors.Is(err, generator.ErrImageUnavailable) {
		b.log.Error("transform message", "message_id", msgID, "prompt_id", promptID, "error", err)
		b.reply(chatID, fmt.Sprintf("Transform failed: %v", err))
		return
	}
	if err != nil {
		b.log.Warn("rewrite stored without image", "rewrite_id", rw.ID, "error", err)
	}
	b.reply(chatID, FormatRewrite(rw))
}

func (b *Bot) handleEdit(ctx context.Context, chatID int64, args string) {
	id, text, err := ParseEditArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	rw, err := b.ops.EditRewrite(ctx, id, text)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Edit failed: %v", err))
		return
	}
	b.reply(chatID, FormatRewrite(rw))
}

func (b *Bot) handlePublish(ctx context.Context, chatID int64, args string) {
	id, channel, err := ParsePublishArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	if err := b.ops.Publish(ctx, id, channel); err != nil {
		b.log.Error("publish rewrite", "rewrite_id", id, "channel", channel, "error", err)
		b.reply(chatID, fmt.Sprintf("Publish failed: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Rewrite #%d published to %s.", id, channel))
}
