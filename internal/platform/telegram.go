package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/solsticelabs/chatpulse/internal/bus"
	"github.com/solsticelabs/chatpulse/internal/config"
)

const (
	navPrevData = "pg:prev"
	navNextData = "pg:next"
)

// BotAPI is the slice of the telegram bot API the adapter uses (allows
// mocking in tests).
type BotAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetSelf() tgbotapi.User
}

type botWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *botWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *botWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *botWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *botWrapper) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return w.bot.Request(c)
}

func (w *botWrapper) GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	return w.bot.GetChatMember(config)
}

func (w *botWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates BotAPI instances (allows mocking).
type BotFactory func(token string, client *http.Client) (BotAPI, error)

var defaultBotFactory BotFactory = func(token string, client *http.Client) (BotAPI, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &botWrapper{bot: bot}, nil
}

// Telegram adapts the telegram bot API to the Client interface and feeds
// platform updates into the event bus.
type Telegram struct {
	token      string
	proxy      string
	bot        BotAPI
	bus        *bus.EventBus
	botFactory BotFactory
	cancel     context.CancelFunc
}

func NewTelegram(cfg config.TelegramConfig, b *bus.EventBus) (*Telegram, error) {
	return NewTelegramWithFactory(cfg, b, defaultBotFactory)
}

// NewTelegramWithFactory creates a Telegram adapter with a custom bot factory
// (for testing).
func NewTelegramWithFactory(cfg config.TelegramConfig, b *bus.EventBus, factory BotFactory) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	return &Telegram{
		token:      cfg.Token,
		proxy:      cfg.Proxy,
		bus:        b,
		botFactory: factory,
	}, nil
}

func (t *Telegram) initBot() error {
	client := http.DefaultClient
	if t.proxy != "" {
		proxyURL, err := url.Parse(t.proxy)
		if err != nil {
			return fmt.Errorf("parse proxy url: %w", err)
		}
		client = &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}
	}

	bot, err := t.botFactory(t.token, client)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot
	log.Info().Str("component", "telegram").
		Str("username", bot.GetSelf().UserName).
		Msg("authorized")
	return nil
}

func (t *Telegram) Start(ctx context.Context) error {
	if err := t.initBot(); err != nil {
		return err
	}

	ctx, t.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update := <-updates:
				t.handleUpdate(update)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info().Str("component", "telegram").Msg("polling started")
	return nil
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		t.handleCallback(update.CallbackQuery)
		return
	}
	if update.Message != nil {
		t.handleMessage(update.Message)
	}
}

func (t *Telegram) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	// Voice-chat participation only surfaces as service messages here, and
	// there is no per-user leave: open sessions stay open until the whole
	// voice chat ends.
	if msg.VoiceChatParticipantsInvited != nil {
		at := time.Unix(int64(msg.Date), 0)
		for _, user := range msg.VoiceChatParticipantsInvited.Users {
			t.bus.Publish(bus.Event{Voice: &bus.VoiceStateEvent{
				UserID: user.ID,
				Before: "",
				After:  fmt.Sprintf("%d", msg.Chat.ID),
				At:     at,
			}})
		}
		return
	}
	if msg.VoiceChatEnded != nil {
		t.bus.Publish(bus.Event{VoiceEnded: &bus.VoiceEndedEvent{
			Channel: fmt.Sprintf("%d", msg.Chat.ID),
			At:      time.Unix(int64(msg.Date), 0),
		}})
		return
	}

	text := msg.Text
	if text == "" && msg.Caption != "" {
		text = msg.Caption
	}
	if text == "" {
		return
	}

	t.bus.Publish(bus.Event{Message: &bus.MessageEvent{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      text,
		FromBot:   msg.From.IsBot,
		At:        time.Unix(int64(msg.Date), 0),
	}})
}

func (t *Telegram) handleCallback(cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil || cq.From == nil {
		return
	}

	var dir bus.Direction
	switch cq.Data {
	case navPrevData:
		dir = bus.DirPrev
	case navNextData:
		dir = bus.DirNext
	default:
		return
	}

	// Acknowledge so the client stops the spinner; failure is cosmetic.
	if _, err := t.bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		log.Debug().Str("component", "telegram").Err(err).Msg("answer callback failed")
	}

	t.bus.Publish(bus.Event{Nav: &bus.NavEvent{
		UserID:    cq.From.ID,
		ChatID:    cq.Message.Chat.ID,
		MessageID: cq.Message.MessageID,
		Direction: dir,
	}})
}

func (t *Telegram) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	log.Info().Str("component", "telegram").Msg("stopped")
	return nil
}

// SetBot sets the bot (for testing).
func (t *Telegram) SetBot(bot BotAPI) {
	t.bot = bot
}

func (t *Telegram) SendMessage(_ context.Context, chatID int64, text string) (int, error) {
	if t.bot == nil {
		return 0, fmt.Errorf("telegram bot not initialized")
	}
	msg := tgbotapi.NewMessage(chatID, text)
	sent, err := t.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send telegram message: %w", err)
	}
	return sent.MessageID, nil
}

func (t *Telegram) EditMessage(_ context.Context, chatID int64, messageID int, text string) error {
	if t.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := t.bot.Send(edit); err != nil {
		return fmt.Errorf("edit telegram message: %w", err)
	}
	return nil
}

func (t *Telegram) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	if t.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}
	if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete telegram message: %w", err)
	}
	return nil
}

func navKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀", navPrevData),
			tgbotapi.NewInlineKeyboardButtonData("▶", navNextData),
		),
	)
}

func (t *Telegram) AttachNav(_ context.Context, chatID int64, messageID int) error {
	if t.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}
	markup := navKeyboard()
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, markup)
	if _, err := t.bot.Request(edit); err != nil {
		return fmt.Errorf("attach nav keyboard: %w", err)
	}
	return nil
}

func (t *Telegram) ClearNav(_ context.Context, chatID int64, messageID int) error {
	if t.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}
	// Omitting the reply markup removes the keyboard.
	edit := tgbotapi.EditMessageReplyMarkupConfig{
		BaseEdit: tgbotapi.BaseEdit{ChatID: chatID, MessageID: messageID},
	}
	if _, err := t.bot.Request(edit); err != nil {
		return fmt.Errorf("clear nav keyboard: %w", err)
	}
	return nil
}

func (t *Telegram) ResolveUser(_ context.Context, chatID, userID int64) string {
	if t.bot != nil {
		member, err := t.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
		})
		if err == nil && member.User != nil {
			if member.User.UserName != "" {
				return "@" + member.User.UserName
			}
			if member.User.FirstName != "" {
				return member.User.FirstName
			}
		}
	}
	return fmt.Sprintf("User %d", userID)
}
