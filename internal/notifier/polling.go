package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

// CommandHandler is called when a user command is received.
type CommandHandler func(command string) string

// telegramUpdate represents a Telegram update from long polling.
type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// StartPolling begins long-polling for Telegram commands. Blocks until ctx is cancelled.
// Only messages from the configured chat are answered.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	offset := 0
	client := resty.New().
		SetTimeout(35 * time.Second).
		SetJSONUnmarshaler(json.Unmarshal)
	if t.proxy != "" {
		client.SetProxy(t.proxy)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("telegram polling stopped")
			return
		default:
		}

		var result struct {
			OK     bool             `json:"ok"`
			Result []telegramUpdate `json:"result"`
		}
		resp, err := client.R().
			SetContext(ctx).
			SetQueryParam("offset", fmt.Sprint(offset)).
			SetQueryParam("timeout", "30").
			SetResult(&result).
			Get(fmt.Sprintf("%s/bot%s/getUpdates", t.baseURL, t.BotToken))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("polling request failed")
			sleepCtx(ctx, 5*time.Second)
			continue
		}
		if resp.IsError() || !result.OK {
			log.WithField("status", resp.StatusCode()).Warn("polling rejected by telegram")
			sleepCtx(ctx, 5*time.Second)
			continue
		}

		for _, update := range result.Result {
			offset = update.UpdateID + 1
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			if fmt.Sprint(update.Message.Chat.ID) != t.ChatID {
				log.WithField("chat", update.Message.Chat.ID).Warn("ignoring command from unknown chat")
				continue
			}
			text := strings.TrimSpace(update.Message.Text)
			log.WithField("command", text).Info("received command")
			reply := handler(text)
			if reply != "" {
				if err := t.Send(ctx, reply); err != nil {
					log.WithError(err).Error("send reply")
				}
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
