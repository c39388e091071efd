package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"friday/pkg/api"
	"friday/pkg/automation"
	"friday/pkg/config"
)

// telegramMessageLimit is the Bot API limit on one message, in runes.
const telegramMessageLimit = 4096

const remediationTelegram = "Add telegram_token under messaging in config.json and a telegram_chat_id for the contact."

// TelegramSender delivers a text message to a Telegram chat.
type TelegramSender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// NewTelegramSender returns a sender backed by the Bot API. The bot is
// authorized on first use, so a missing or bad token only fails
// send_telegram.
func NewTelegramSender(token string) TelegramSender {
	return newBotSender(token, tgbotapi.APIEndpoint)
}

type botSender struct {
	token    string
	endpoint string
	client   *http.Client

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

func newBotSender(token, endpoint string) *botSender {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &botSender{
		token:    strings.TrimSpace(token),
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				ForceAttemptHTTP2:   true,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

func (s *botSender) botAPI() (*tgbotapi.BotAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bot != nil {
		return s.bot, nil
	}
	if s.token == "" {
		return nil, api.Errorf(api.KindExternalUnavailable, "telegram is not configured").
			WithRemediation(remediationTelegram).AsPermanent()
	}
	bot, err := tgbotapi.NewBotAPIWithClient(s.token, s.endpoint, s.client)
	if err != nil {
		e := api.Wrap(api.KindExternalUnavailable, err, "failed to authorize telegram bot")
		if strings.Contains(strings.ToLower(err.Error()), "unauthorized") {
			e = e.WithRemediation("Check telegram_token in config.json.").AsPermanent()
		}
		return nil, e
	}
	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)
	s.bot = bot
	return bot, nil
}

// Send splits long text into several messages. The Bot API client has no
// context support, so a cancelled ctx abandons the request in flight.
// Once a chunk has been delivered failures are permanent, so neither a
// retry nor a fallback provider repeats it.
func (s *botSender) Send(ctx context.Context, chatID int64, text string) error {
	var delivered atomic.Int32
	done := make(chan error, 1)
	go func() {
		bot, err := s.botAPI()
		if err != nil {
			done <- err
			return
		}
		chunks := splitMessage(text, telegramMessageLimit)
		for i, chunk := range chunks {
			if _, err := bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
				e := api.Wrap(api.KindExternalUnavailable, err, "telegram send failed")
				if i > 0 {
					e = api.Wrap(api.KindExternalUnavailable, err,
						"telegram send failed after %d of %d parts were delivered", i, len(chunks)).AsPermanent()
				}
				done <- e
				return
			}
			delivered.Add(1)
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if n := delivered.Load(); n > 0 {
			return api.Wrap(api.KindTimeout, ctx.Err(), "telegram send interrupted after %d parts were delivered", n).AsPermanent()
		}
		return ctx.Err()
	}
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// line breaks.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return append(chunks, string(runes))
}

func messagingCapabilities(ctl automation.Controller, book config.MessagingConfig, tg TelegramSender) []api.Capability {
	params := []api.Param{
		stringParam("contact", "Contact name from the address book, or a phone number"),
		stringParam("message", "Text to send"),
	}

	whatsApp := func(via automation.WhatsAppVia) api.Handler {
		return func(ctx context.Context, args api.Args) (api.Result, error) {
			contact, message := args.String("contact"), args.String("message")
			target := contact
			if c, ok := book.Lookup(contact); ok && c.Phone != "" {
				target = c.Phone
			}
			if err := ctl.SendWhatsApp(ctx, via, target, message); err != nil {
				return api.Result{}, err
			}
			return withEffect(api.Textf("Sent WhatsApp message to %s via %s", contact, via), nil)
		}
	}

	return []api.Capability{
		{
			Name:        "send_whatsapp_desktop",
			Description: "Send a WhatsApp message using the desktop app.",
			Params:      params,
			Effect:      api.EffectOSAutomation,
			Timeout:     60 * time.Second,
			Handler:     whatsApp(automation.WhatsAppDesktop),
		},
		{
			Name:        "send_whatsapp_web",
			Description: "Send a WhatsApp message using WhatsApp Web in the browser.",
			Params:      params,
			Effect:      api.EffectOSAutomation,
			Timeout:     60 * time.Second,
			Handler:     whatsApp(automation.WhatsAppWeb),
		},
		{
			Name:        "send_telegram",
			Description: "Send a Telegram message through the configured bot.",
			Params:      params,
			Effect:      api.EffectNetwork,
			Handler: func(ctx context.Context, args api.Args) (api.Result, error) {
				contact, message := args.String("contact"), args.String("message")
				chatID, err := telegramChat(book, contact)
				if err != nil {
					return api.Result{}, err
				}
				if err := tg.Send(ctx, chatID, message); err != nil {
					return api.Result{}, err
				}
				return withEffect(api.Textf("Sent Telegram message to %s", contact), nil)
			},
		},
	}
}

// telegramChat resolves a contact name, or a raw numeric chat id.
func telegramChat(book config.MessagingConfig, contact string) (int64, error) {
	if c, ok := book.Lookup(contact); ok {
		if c.TelegramChatID == 0 {
			return 0, api.Errorf(api.KindExternalUnavailable, "contact %q has no telegram chat id", contact).
				WithRemediation(remediationTelegram).AsPermanent()
		}
		return c.TelegramChatID, nil
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(contact), 10, 64); err == nil && id != 0 {
		return id, nil
	}
	return 0, api.Errorf(api.KindExternalUnavailable, "contact %q is not in the address book", contact).
		WithRemediation(fmt.Sprintf("Add %q under messaging.contacts in config.json.", contact)).AsPermanent()
}
