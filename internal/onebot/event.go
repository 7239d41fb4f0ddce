package onebot

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Event is an inbound OneBot v11 event frame. Only the fields the bot
// consumes are mapped; the rest of the frame is ignored.
type Event struct {
	Time          int64           `json:"time"`
	SelfID        int64           `json:"self_id"`
	PostType      string          `json:"post_type"`
	MessageType   string          `json:"message_type,omitempty"`
	SubType       string          `json:"sub_type,omitempty"`
	MessageID     int64           `json:"message_id,omitempty"`
	UserID        int64           `json:"user_id,omitempty"`
	GroupID       int64           `json:"group_id,omitempty"`
	RawMessage    string          `json:"raw_message,omitempty"`
	Message       json.RawMessage `json:"message,omitempty"`
	Sender        *Sender         `json:"sender,omitempty"`
	MetaEventType string          `json:"meta_event_type,omitempty"`
}

type Sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Role     string `json:"role,omitempty"`
}

// Segment is one element of a OneBot message. Data values are strings
// on the wire, but some hosts send numbers, so parsing is tolerant.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func (s Segment) str(key string) string {
	switch v := s.Data[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// Text builds a plain text segment.
func Text(s string) Segment {
	return Segment{Type: "text", Data: map[string]any{"text": s}}
}

// Image builds an image segment. file accepts a file:/// URI, an
// http(s) URL or a host-local file name.
func Image(file string) Segment {
	return Segment{Type: "image", Data: map[string]any{"file": file}}
}

// At builds an @-mention segment.
func At(userID int64) Segment {
	return Segment{Type: "at", Data: map[string]any{"qq": strconv.FormatInt(userID, 10)}}
}

func (ev *Event) IsMessage() bool { return ev.PostType == "message" }
func (ev *Event) IsGroup() bool   { return ev.MessageType == "group" }
func (ev *Event) IsPrivate() bool { return ev.MessageType == "private" }
func (ev *Event) IsMeta() bool    { return ev.PostType == "meta_event" }

// Segments decodes the message body. Hosts may deliver either a
// segment array or a bare CQ string; in the latter case a single text
// segment holding RawMessage is returned.
func (ev *Event) Segments() []Segment {
	if len(ev.Message) == 0 {
		return nil
	}
	var segs []Segment
	if err := json.Unmarshal(ev.Message, &segs); err == nil {
		return segs
	}
	var s string
	if err := json.Unmarshal(ev.Message, &s); err == nil {
		return []Segment{Text(s)}
	}
	return []Segment{Text(ev.RawMessage)}
}

// PlainText concatenates the text segments of the message.
func (ev *Event) PlainText() string {
	var b strings.Builder
	for _, seg := range ev.Segments() {
		if seg.Type == "text" {
			b.WriteString(seg.str("text"))
		}
	}
	return strings.TrimSpace(b.String())
}

// AtMe reports whether the message @-mentions the receiving bot.
func (ev *Event) AtMe() bool {
	me := strconv.FormatInt(ev.SelfID, 10)
	for _, seg := range ev.Segments() {
		if seg.Type == "at" && seg.str("qq") == me {
			return true
		}
	}
	return false
}
