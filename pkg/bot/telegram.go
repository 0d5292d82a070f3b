// Package bot connects the Telegram transport to the dispatcher: update
// ingress via long polling and the outbound render calls.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoutil"

	"github.com/vigarepo2/elixir/pkg/bus"
	"github.com/vigarepo2/elixir/pkg/logger"
)

const (
	apiCallTimeout      = 15 * time.Second
	pollingRestartDelay = 5 * time.Second
)

type cancelGuard struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (g *cancelGuard) set(cancel context.CancelFunc) {
	g.mu.Lock()
	g.cancel = cancel
	g.mu.Unlock()
}

func (g *cancelGuard) cancelAndClear() {
	g.mu.Lock()
	cancel := g.cancel
	g.cancel = nil
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Telegram wraps the bot API client. It feeds inbound updates into the bus
// and implements Gateway for the outbound direction.
type Telegram struct {
	bot       *telego.Bot
	runCancel cancelGuard
}

func NewTelegram(token string) (*Telegram, error) {
	b, err := telego.NewBot(token, telego.WithDefaultLogger(false, false))
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{bot: b}, nil
}

// StartPolling runs the long-polling loop, restarting it if Telegram closes
// the updates channel, and publishes every update onto the bus.
func (t *Telegram) StartPolling(ctx context.Context, updateBus *bus.UpdateBus) error {
	runCtx, cancel := context.WithCancel(ctx)
	t.runCancel.set(cancel)

	updates, err := t.bot.UpdatesViaLongPolling(runCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to start updates polling: %w", err)
	}

	botInfo, err := t.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	logger.InfoCF("telegram", "Telegram bot connected", map[string]interface{}{
		"username": botInfo.Username,
	})

	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					logger.WarnC("telegram", "Updates channel closed unexpectedly, attempting to restart polling...")

					select {
					case <-runCtx.Done():
						return
					case <-time.After(pollingRestartDelay):
					}

					newUpdates, err := t.bot.UpdatesViaLongPolling(runCtx, nil)
					if err != nil {
						logger.ErrorCF("telegram", "Failed to restart updates polling", map[string]interface{}{
							logger.FieldError: err.Error(),
						})
						continue
					}
					updates = newUpdates
					logger.InfoC("telegram", "Updates polling restarted successfully")
					continue
				}
				updateBus.Publish(update)
			}
		}
	}()

	return nil
}

func (t *Telegram) Stop() {
	t.runCancel.cancelAndClear()
}

func (t *Telegram) Send(ctx context.Context, chatID int64, text string, entities []telego.MessageEntity, keyboard *telego.InlineKeyboardMarkup) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	params := telegoutil.Message(telegoutil.ID(chatID), text)
	if len(entities) > 0 {
		params.Entities = entities
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	msg, err := t.bot.SendMessage(callCtx, params)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return msg.MessageID, nil
}

func (t *Telegram) Edit(ctx context.Context, chatID int64, messageID int, text string, keyboard *telego.InlineKeyboardMarkup) error {
	callCtx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	_, err := t.bot.EditMessageText(callCtx, &telego.EditMessageTextParams{
		ChatID:      telegoutil.ID(chatID),
		MessageID:   messageID,
		Text:        text,
		ReplyMarkup: keyboard,
	})
	if err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (t *Telegram) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	callCtx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	err := t.bot.AnswerCallbackQuery(callCtx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}
