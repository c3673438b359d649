// Package telegram delivers batch reports to a Telegram chat and answers a
// few operator commands from that chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxTelegramMessage = 4096

// Controller is what the bot's commands act on.
type Controller interface {
	Status(ctx context.Context) (string, error)
	Run(ctx context.Context) (string, error)
	Backfill(ctx context.Context) (string, error)
}

// Adapter bridges Telegram to the batch processor.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	ctl     Controller
	allowed int64
}

// New creates a Telegram adapter. Commands are only answered in the chat
// named by notifyKey; with an empty key commands are ignored and the adapter
// only delivers.
func New(token string, ctl Controller, notifyKey string) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	a := &Adapter{bot: bot, ctl: ctl}
	if notifyKey != "" {
		if a.allowed, err = ParseChatID(notifyKey); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			a.handleCommand(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if a.allowed == 0 || chatID != a.allowed {
		slog.Warn("ignoring telegram command from unknown chat", "chat_id", chatID, "command", msg.Command())
		return
	}

	var (
		reply string
		err   error
	)
	switch msg.Command() {
	case "start", "help":
		reply = "sessionlog bot. Available: /status, /run, /backfill"
	case "status":
		reply, err = a.ctl.Status(ctx)
	case "run":
		reply, err = a.ctl.Run(ctx)
	case "backfill":
		reply, err = a.ctl.Backfill(ctx)
	default:
		reply = "Unknown command. Available: /status, /run, /backfill"
	}
	if err != nil {
		slog.Error("telegram command failed", "command", msg.Command(), "error", err)
		reply = "Error: " + err.Error()
	}
	a.send(chatID, reply)
}

// Deliver sends message to the chat in sessionKey. It has the shape of a
// delivery.Handler.
func (a *Adapter) Deliver(sessionKey, message string) error {
	chatID, err := ParseChatID(sessionKey)
	if err != nil {
		return err
	}
	return a.send(chatID, message)
}

func (a *Adapter) send(chatID int64, text string) error {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		if _, err := a.bot.Send(msg); err != nil {
			slog.Error("send message error", "chat_id", chatID, "error", err)
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

// ParseChatID extracts the chat id from "telegram:<chat>" or
// "telegram:<user>:<chat>".
func ParseChatID(sessionKey string) (int64, error) {
	parts := strings.Split(sessionKey, ":")
	if len(parts) < 2 || parts[0] != "telegram" {
		return 0, fmt.Errorf("not a telegram session key: %s", sessionKey)
	}
	id, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id in session key %s: %w", sessionKey, err)
	}
	return id, nil
}
