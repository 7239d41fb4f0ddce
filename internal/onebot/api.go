package onebot

import (
	"encoding/json"
	"fmt"
)

// ========================= high-level API =========================

func (c *Client) SendGroupMsg(groupID int64, msg []Segment, cb func(*APIResponse) bool) error {
	return c.CallAction("send_group_msg", map[string]any{
		"group_id": groupID,
		"message":  msg,
	}, cb)
}

func (c *Client) SendPrivateMsg(userID int64, msg []Segment, cb func(*APIResponse) bool) error {
	return c.CallAction("send_private_msg", map[string]any{
		"user_id": userID,
		"message": msg,
	}, cb)
}

// Reply sends segments back to the chat the event came from.
func (c *Client) Reply(ev *Event, segs ...Segment) error {
	switch {
	case ev.IsGroup():
		return c.SendGroupMsg(ev.GroupID, segs, nil)
	case ev.IsPrivate():
		return c.SendPrivateMsg(ev.UserID, segs, nil)
	default:
		return fmt.Errorf("cannot reply to %s event", ev.PostType)
	}
}

func (c *Client) GetStatus(cb func(*APIResponse) bool) error {
	return c.CallAction("get_status", nil, cb)
}

// LoginInfo is the data payload of get_login_info.
type LoginInfo struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
}

func (c *Client) GetLoginInfo(cb func(*LoginInfo, error) bool) error {
	return c.CallAction("get_login_info", nil, func(r *APIResponse) bool {
		if cb == nil {
			return true
		}
		if err := r.Err(); err != nil {
			return cb(nil, err)
		}
		var li LoginInfo
		if err := json.Unmarshal(r.Data, &li); err != nil {
			return cb(nil, err)
		}
		return cb(&li, nil)
	})
}
