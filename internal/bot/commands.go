package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yahayao/replybot/internal/onebot"
	"github.com/yahayao/replybot/internal/rules"
)

// ErrNotAdmin rejects mutating commands from non-admin senders.
var ErrNotAdmin = errors.New("permission denied: admins only")

const ingestTimeout = 60 * time.Second

// HandleCommand dispatches one admin command line. list and help are
// open to everyone; everything that mutates the rule set is gated on
// the configured admin list.
func (b *Bot) HandleCommand(ev *onebot.Event, text string) error {
	rest := strings.TrimSpace(strings.TrimPrefix(text, b.cfg.CommandPrefix))
	if rest == "" {
		rest = "help"
	}
	sub, arg, _ := strings.Cut(rest, " ")
	sub = strings.ToLower(sub)
	arg = strings.TrimSpace(arg)

	say := func(s string) { b.say(ev, s) }

	switch sub {

	case "help":
		say(strings.Join([]string{
			b.cfg.CommandPrefix + " help",
			b.cfg.CommandPrefix + " list",
			b.cfg.CommandPrefix + " add <keyword>|text|<reply>",
			b.cfg.CommandPrefix + " add <keyword>|image|<url or base64>",
			b.cfg.CommandPrefix + " add <keyword>|mixed|<reply>|<url or base64>",
			b.cfg.CommandPrefix + " addre <pattern>|<reply>",
			b.cfg.CommandPrefix + " del|on|off|mode <seq>",
			b.cfg.CommandPrefix + " save",
		}, "\n"))
		return nil

	case "list":
		if b.set.Len() == 0 {
			say("no reply rules yet")
			return nil
		}
		rows := make([]string, 0, b.set.Len())
		for _, r := range b.set.Rules() {
			rows = append(rows, r.String())
		}
		say("reply rules:\n" + strings.Join(rows, "\n"))
		return nil
	}

	// everything below changes the rule set
	if !b.isAdmin(ev.UserID) {
		return ErrNotAdmin
	}

	switch sub {

	case "add":
		r, err := b.addRule(arg)
		if err != nil {
			return err
		}
		if err := b.store.Save(b.set); err != nil {
			return err
		}
		say(fmt.Sprintf("rule #%d added: [%s] %s", r.Seq, r.Type, r.Trigger))
		return nil

	case "addre":
		pattern, content, ok := strings.Cut(arg, "|")
		if !ok {
			return fmt.Errorf("usage: %s addre <pattern>|<reply>", b.cfg.CommandPrefix)
		}
		r, err := b.set.AddRegex(pattern, content)
		if err != nil {
			return err
		}
		if err := b.store.Save(b.set); err != nil {
			return err
		}
		say(fmt.Sprintf("rule #%d added: [regex] %s", r.Seq, r.Trigger))
		return nil

	case "del":
		seq, err := parseSeq(arg)
		if err != nil {
			return err
		}
		r, err := b.set.Delete(seq)
		if err != nil {
			return err
		}
		if r.ImageFile != "" {
			if rerr := b.images.Remove(r.ImageFile); rerr != nil {
				b.log.Warn().Str("image", r.ImageFile).Err(rerr).Msg("image cleanup failed")
			}
		}
		if err := b.store.Save(b.set); err != nil {
			return err
		}
		say(fmt.Sprintf("rule #%d deleted", seq))
		return nil

	case "on", "off":
		seq, err := parseSeq(arg)
		if err != nil {
			return err
		}
		r, err := b.set.SetEnabled(seq, sub == "on")
		if err != nil {
			return err
		}
		if err := b.store.Save(b.set); err != nil {
			return err
		}
		state := "enabled"
		if !r.Enabled {
			state = "disabled"
		}
		say(fmt.Sprintf("rule #%d %s", seq, state))
		return nil

	case "mode":
		seq, err := parseSeq(arg)
		if err != nil {
			return err
		}
		r, err := b.set.ToggleMode(seq)
		if err != nil {
			return err
		}
		if err := b.store.Save(b.set); err != nil {
			return err
		}
		say(fmt.Sprintf("rule #%d now matches %s", seq, r.Mode))
		return nil

	case "save":
		if err := b.store.Save(b.set); err != nil {
			return err
		}
		say("rules saved")
		return nil

	default:
		return fmt.Errorf("unknown command. try %s help", b.cfg.CommandPrefix)
	}
}

// addRule parses "keyword|type|content[|image]" and stores image
// payloads before the rule is appended.
func (b *Bot) addRule(arg string) (*rules.Rule, error) {
	usage := fmt.Errorf("usage: %s add <keyword>|<text|image|mixed>|<content>", b.cfg.CommandPrefix)

	parts := strings.SplitN(arg, "|", 3)
	if len(parts) < 3 {
		return nil, usage
	}
	keyword := strings.TrimSpace(parts[0])
	typ, err := parseReplyType(parts[1])
	if err != nil {
		return nil, err
	}
	content := parts[2]

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	switch typ {
	case rules.ReplyText:
		return b.set.Add(keyword, typ, content, "")

	case rules.ReplyImage:
		name, err := b.images.Ingest(ctx, content)
		if err != nil {
			return nil, err
		}
		return b.set.Add(keyword, typ, "", name)

	default: // mixed: content is "<reply>|<image source>"
		text, src, ok := strings.Cut(content, "|")
		if !ok {
			return nil, fmt.Errorf("usage: %s add <keyword>|mixed|<reply>|<url or base64>", b.cfg.CommandPrefix)
		}
		name, err := b.images.Ingest(ctx, src)
		if err != nil {
			return nil, err
		}
		return b.set.Add(keyword, typ, text, name)
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	for _, id := range b.cfg.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

func parseSeq(arg string) (int, error) {
	seq, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("invalid rule number %q", arg)
	}
	return seq, nil
}

func parseReplyType(s string) (rules.ReplyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "文字":
		return rules.ReplyText, nil
	case "image", "图片":
		return rules.ReplyImage, nil
	case "mixed", "混合":
		return rules.ReplyMixed, nil
	default:
		return "", fmt.Errorf("unknown reply type %q (want text, image or mixed)", s)
	}
}
