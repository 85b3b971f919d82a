package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"CryptoDCA/internal/retry"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	// Exchange labels every message, e.g. "binance (test mode)".
	Exchange   string
	MaxRetries int

	baseURL string
	proxy   string
	http    *resty.Client
	backoff func() backoff.BackOff
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, exchange, proxyURL string) *TelegramNotifier {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err == nil {
			client.SetProxy(proxyURL)
		} else {
			proxyURL = ""
		}
	}
	return &TelegramNotifier{
		BotToken:   botToken,
		ChatID:     chatID,
		Exchange:   exchange,
		MaxRetries: 3,
		baseURL:    telegramAPI,
		proxy:      proxyURL,
		http:       client,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			return b
		},
	}
}

// Send sends a message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	resp, err := t.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.BotToken))
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	b := t.backoff()
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := t.Send(ctx, text); err != nil {
			lastErr = err
			if i == maxRetries {
				break
			}
			wait := b.NextBackOff()
			if wait == backoff.Stop {
				break
			}
			log.WithError(err).Warnf("telegram send failed (attempt %d/%d), retrying in %v", i+1, maxRetries+1, wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}

func (t *TelegramNotifier) deliver(ctx context.Context, text string) {
	if err := t.SendWithRetry(ctx, text, t.MaxRetries); err != nil {
		log.WithError(err).Warn("notification not delivered")
	}
}

func (t *TelegramNotifier) Info(ctx context.Context, text string) {
	t.deliver(ctx, FormatInfo(t.Exchange, text))
}

func (t *TelegramNotifier) WarningInsufficientFunds(ctx context.Context, w FundsWarning) {
	t.deliver(ctx, FormatFundsWarning(t.Exchange, w))
}

func (t *TelegramNotifier) ErrorRecoverable(ctx context.Context, coin string, policy retry.Policy, err error) {
	t.deliver(ctx, FormatRecoverableError(t.Exchange, coin, policy, err))
}

func (t *TelegramNotifier) Critical(ctx context.Context, err error, when string) {
	t.deliver(ctx, FormatCritical(t.Exchange, err, when))
}

func (t *TelegramNotifier) SuccessPurchase(ctx context.Context, p Purchase) {
	t.deliver(ctx, FormatPurchase(t.Exchange, p))
}
