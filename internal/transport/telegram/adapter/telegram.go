package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "gamenewsbot/internal/transport"
	logx "gamenewsbot/pkg/logx"
	"gamenewsbot/pkg/tgui"
)

type Config struct {
	Token          string
	RequestTimeout time.Duration
	// APIURL overrides the Bot API base URL (tests, local Bot API servers).
	APIURL string
	// Offline skips the getMe handshake on construction.
	Offline bool
}

// Adapter is a send-only Telegram client. The bot never polls for updates;
// it only publishes to a channel.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: timeout},
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if !cfg.Offline && b.Me != nil {
		log.Info("telegram bot authorized", logx.String("username", b.Me.Username))
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

func (a *Adapter) SendText(ctx context.Context, to kit.Target, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if err := ctxErr(ctx); err != nil {
		return kit.MessageRef{}, err
	}
	msg, err := a.bot.Send(to, text, a.sendOptions(opt))
	if err != nil {
		return kit.MessageRef{}, mapError(err)
	}
	return ref(to, msg), nil
}

func (a *Adapter) SendPhoto(ctx context.Context, to kit.Target, photoURL, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if err := ctxErr(ctx); err != nil {
		return kit.MessageRef{}, err
	}
	p := &tele.Photo{File: tele.FromURL(photoURL), Caption: caption}
	msg, err := a.bot.Send(to, p, a.sendOptions(opt))
	if err != nil {
		return kit.MessageRef{}, mapError(err)
	}
	return ref(to, msg), nil
}

func (a *Adapter) sendOptions(opt *kit.SendOptions) *tele.SendOptions {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	so := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
	}
	if len(opt.Buttons) > 0 {
		kb := tgui.NewInline()
		for _, b := range opt.Buttons {
			kb.Row(tgui.URLBtn(b.Text, b.URL))
		}
		so.ReplyMarkup = kb.Markup()
	}
	return so
}

func ref(to kit.Target, msg *tele.Message) kit.MessageRef {
	r := kit.MessageRef{Chat: to.String()}
	if msg != nil {
		r.MessageID = msg.ID
	}
	return r
}

// mapError turns Telegram flood control into a transport-level error the
// dispatcher understands.
func mapError(err error) error {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &kit.RateLimitedError{Err: err, RetryAfter: time.Duration(flood.RetryAfter) * time.Second}
	}
	return err
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
