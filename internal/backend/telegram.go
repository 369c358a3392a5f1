package backend

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mfulz/linegeist/interfaces"
	"github.com/mfulz/linegeist/internal/format"
	"github.com/mfulz/linegeist/internal/logging"
	"github.com/mfulz/linegeist/protocol"
)

func init() {
	interfaces.RegisterBackend("telegram", func() interfaces.SendBackend {
		return &telegramBackend{}
	})
}

type telegramOptions struct {
	Token       string `mapstructure:"token"`
	ChatID      int64  `mapstructure:"chat_id"`
	APIEndpoint string `mapstructure:"api_endpoint"` // defaults to the public Bot API
}

// telegramBackend posts messages to one Telegram chat through the Bot API.
type telegramBackend struct {
	mu   sync.Mutex
	opts *telegramOptions
	bot  *tgbotapi.BotAPI
}

func (t *telegramBackend) Name() string { return "telegram" }

func (t *telegramBackend) Configure(options map[string]any) error {
	opts := telegramOptions{APIEndpoint: tgbotapi.APIEndpoint}
	if err := decodeOptions(options, &opts); err != nil {
		return err
	}
	if opts.Token == "" || opts.ChatID == 0 {
		return fmt.Errorf("telegram backend: token and chat_id are required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.opts = &opts
	return nil
}

// login authenticates lazily; NewBotAPI performs a getMe round trip.
func (t *telegramBackend) login() error {
	if t.bot != nil {
		return nil
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(t.opts.Token, t.opts.APIEndpoint)
	if err != nil {
		return fmt.Errorf("telegram login failed: %w", err)
	}
	logging.Log.Debugf("[backend] telegram authorized as %s", bot.Self.UserName)
	t.bot = bot
	return nil
}

func (t *telegramBackend) Send(ctx context.Context, msg *protocol.Message) (*protocol.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg.Empty() {
		return skipped(t.Name(), msg), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.opts == nil {
		return nil, ErrNotConfigured
	}
	if err := t.login(); err != nil {
		return nil, err
	}

	text := msg.Text
	if msg.Kind == protocol.KindAction {
		text = format.RenderPlain(msg)
	}

	sent, err := t.bot.Send(tgbotapi.NewMessage(t.opts.ChatID, text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return &protocol.Receipt{
		MessageID: msg.ID,
		Backend:   t.Name(),
		Delivered: true,
		Detail:    strconv.Itoa(sent.MessageID),
	}, nil
}

func (t *telegramBackend) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	t.bot = nil
	return nil
}
