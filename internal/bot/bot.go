package bot

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yahayao/replybot/internal/imagestore"
	"github.com/yahayao/replybot/internal/logging"
	"github.com/yahayao/replybot/internal/onebot"
	"github.com/yahayao/replybot/internal/rules"
)

// Bot glues the host client, the rule set with its store and the
// image store together: it listens for message events, dispatches
// admin commands and lets the matcher pick at most one reply.
type Bot struct {
	cfg    *Config
	client *onebot.Client
	set    *rules.Set
	store  *rules.Store
	images *imagestore.Store
	log    zerolog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	// indirection for tests, defaults to client.Reply
	send func(ev *onebot.Event, segs ...onebot.Segment) error
}

// New loads the persisted rule set and wires the host client. The
// data dir (rules file + images/) is created on first run.
func New(cfg *Config) (*Bot, error) {
	b := &Bot{
		cfg:   cfg,
		store: rules.NewStore(cfg.rulesPath()),
		log:   logging.GetLogger("bot"),
	}

	set, err := b.store.Load()
	if err != nil {
		return nil, err
	}
	b.set = set

	images, err := imagestore.New(cfg.imagesDir())
	if err != nil {
		return nil, err
	}
	b.images = images

	b.setClient(onebot.Config{URL: cfg.WSURL, AccessToken: cfg.AccessToken})
	b.send = func(ev *onebot.Event, segs ...onebot.Segment) error {
		return b.client.Reply(ev, segs...)
	}

	b.log.Info().Str("rules", b.store.Path()).Int("count", b.set.Len()).Msg("rule set loaded")
	return b, nil
}

func (b *Bot) setClient(cfg onebot.Config) {
	b.client = onebot.New(cfg)

	b.client.OnConnecting = func() { b.log.Info().Str("url", cfg.URL).Msg("connecting") }

	// fires on the first connect and on every reconnect
	b.client.OnConnected = func() {
		b.log.Info().Msg("connected")
		_ = b.client.GetLoginInfo(func(li *onebot.LoginInfo, err error) bool {
			if err != nil {
				b.log.Warn().Err(err).Msg("get_login_info failed")
				return true
			}
			b.log.Info().Int64("user_id", li.UserID).Str("nickname", li.Nickname).Msg("logged in")
			return true
		})
	}

	b.client.OnError = func(err error) { b.log.Warn().Err(err).Msg("host client error") }

	b.client.OnEvent = b.onEvent
}

func (b *Bot) Start() error {
	if b.client == nil {
		return errors.New("host client not initialized")
	}
	b.mu.Lock()
	if b.stopCh != nil {
		b.mu.Unlock()
		return errors.New("already running")
	}
	ch := make(chan struct{})
	b.stopCh = ch
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	if err := b.client.Connect(ctx); err != nil {
		cancel()
		b.mu.Lock()
		if b.stopCh == ch {
			b.stopCh = nil
		}
		b.mu.Unlock()
		return err
	}

	// watchdog for shutdown
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		<-ch
		cancel()
		b.client.Disconnect()
	}()

	return nil
}

func (b *Bot) Stop() {
	b.mu.Lock()
	ch := b.stopCh
	b.stopCh = nil
	b.mu.Unlock()

	if ch != nil {
		close(ch) // a second Stop() is a no-op
		b.wg.Wait()
	}
}

func (b *Bot) onEvent(ev *onebot.Event) {
	if ev.IsMeta() {
		b.log.Trace().Str("type", ev.MetaEventType).Msg("meta event")
		return
	}
	if !ev.IsMessage() {
		return
	}
	if ev.UserID == ev.SelfID {
		return // never react to our own messages
	}

	text := ev.PlainText()
	b.log.Debug().Int64("user", ev.UserID).Int64("group", ev.GroupID).Str("text", text).Msg("message")

	if strings.HasPrefix(text, b.cfg.CommandPrefix) {
		if err := b.HandleCommand(ev, text); err != nil {
			b.say(ev, "err: "+err.Error())
		}
		return
	}

	msg, ok := b.wake(ev, text)
	if !ok {
		return
	}
	if r, matched := b.set.Match(msg); matched {
		b.sendRule(ev, r)
	}
}

// wake decides whether the matcher runs at all and strips the wake
// prefix. Private chats always match; groups only when the bot was
// mentioned or the wake prefix used, unless configured otherwise.
func (b *Bot) wake(ev *onebot.Event, text string) (string, bool) {
	if p := b.cfg.WakePrefix; p != "" && strings.HasPrefix(text, p) {
		return strings.TrimSpace(strings.TrimPrefix(text, p)), true
	}
	if ev.IsPrivate() || !b.cfg.RequireMention {
		return text, true
	}
	if ev.AtMe() {
		return text, true
	}
	return "", false
}

// sendRule fires the matched rule's payload, exactly one reply.
func (b *Bot) sendRule(ev *onebot.Event, r *rules.Rule) {
	var segs []onebot.Segment
	if r.Type == rules.ReplyText || r.Type == rules.ReplyMixed {
		if r.Content != "" {
			segs = append(segs, onebot.Text(r.Content))
		}
	}
	if r.Type == rules.ReplyImage || r.Type == rules.ReplyMixed {
		uri, err := b.images.FileURI(r.ImageFile)
		if err != nil {
			b.log.Warn().Int("seq", r.Seq).Str("image", r.ImageFile).Err(err).Msg("image payload missing")
		} else {
			segs = append(segs, onebot.Image(uri))
		}
	}
	if len(segs) == 0 {
		return
	}
	if err := b.send(ev, segs...); err != nil {
		b.log.Warn().Int("seq", r.Seq).Err(err).Msg("reply failed")
		return
	}
	b.log.Info().Int("seq", r.Seq).Str("trigger", r.Trigger).Msg("rule fired")
}

func (b *Bot) say(ev *onebot.Event, s string) {
	if err := b.send(ev, onebot.Text(s)); err != nil {
		b.log.Warn().Err(err).Msg("say failed")
	}
}
