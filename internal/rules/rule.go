package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Mode selects how a rule's trigger is compared against a message.
type Mode string

const (
	ModeExact Mode = "exact"
	ModeFuzzy Mode = "fuzzy"
	ModeRegex Mode = "regex"
)

// ReplyType selects what a matched rule sends back.
type ReplyType string

const (
	ReplyText  ReplyType = "text"
	ReplyImage ReplyType = "image"
	ReplyMixed ReplyType = "mixed"
)

var (
	ErrNotFound     = errors.New("rule not found")
	ErrBadPattern   = errors.New("invalid regex pattern")
	ErrRegexMode    = errors.New("regex rules do not support match mode toggling")
	ErrEmptyTrigger = errors.New("trigger must not be empty")
)

// Rule maps one trigger to one reply payload.
type Rule struct {
	Seq       int       `json:"seq"`
	Trigger   string    `json:"trigger"`
	Mode      Mode      `json:"mode"`
	Type      ReplyType `json:"type"`
	Content   string    `json:"content"`
	ImageFile string    `json:"image_file,omitempty"`
	Enabled   bool      `json:"enabled"`

	re *regexp.Regexp // compiled trigger for ModeRegex, never persisted
}

// Matches reports whether msg triggers the rule. The enabled flag is
// the Set's concern, not the rule's.
func (r *Rule) Matches(msg string) bool {
	switch r.Mode {
	case ModeExact:
		return msg == r.Trigger
	case ModeFuzzy:
		return strings.Contains(strings.ToLower(msg), strings.ToLower(r.Trigger))
	case ModeRegex:
		return r.re != nil && r.re.MatchString(msg)
	}
	return false
}

func (r *Rule) String() string {
	status := "on"
	if !r.Enabled {
		status = "off"
	}
	return fmt.Sprintf("%d. [%s/%s] %s -> %s [%s]", r.Seq, r.Mode, r.Type, r.Trigger, r.preview(), status)
}

func (r *Rule) preview() string {
	s := r.Content
	if r.Type == ReplyImage {
		s = "image:" + r.ImageFile
	}
	// truncate on runes, content is often CJK
	if rs := []rune(s); len(rs) > 24 {
		s = string(rs[:24]) + "..."
	}
	return s
}

// compile builds the cached regexp for regex rules. Non-regex rules
// are a no-op.
func (r *Rule) compile() error {
	if r.Mode != ModeRegex {
		return nil
	}
	re, err := regexp.Compile(r.Trigger)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadPattern, err)
	}
	r.re = re
	return nil
}
