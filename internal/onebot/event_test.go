package onebot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroupMessageEvent(t *testing.T) {
	frame := `{
	  "time": 1700000000, "self_id": 99, "post_type": "message",
	  "message_type": "group", "sub_type": "normal", "message_id": 42,
	  "user_id": 1001, "group_id": 2002,
	  "raw_message": "[CQ:at,qq=99] hello",
	  "message": [
	    {"type": "at", "data": {"qq": "99"}},
	    {"type": "text", "data": {"text": " hello "}}
	  ],
	  "sender": {"user_id": 1001, "nickname": "alice", "role": "member"}
	}`

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(frame), &ev))

	assert.True(t, ev.IsMessage())
	assert.True(t, ev.IsGroup())
	assert.False(t, ev.IsPrivate())
	assert.Equal(t, int64(2002), ev.GroupID)
	assert.Equal(t, "alice", ev.Sender.Nickname)

	assert.True(t, ev.AtMe())
	assert.Equal(t, "hello", ev.PlainText(), "at segments and padding are stripped")
}

func TestParseStringMessageBody(t *testing.T) {
	frame := `{"post_type":"message","message_type":"private","self_id":99,"user_id":7,"message":"hi there"}`
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(frame), &ev))

	assert.True(t, ev.IsPrivate())
	assert.Equal(t, "hi there", ev.PlainText())
	assert.False(t, ev.AtMe())
}

func TestSegmentDataToleratesNumbers(t *testing.T) {
	// some hosts send numeric ids where OneBot v11 says string
	var seg Segment
	require.NoError(t, json.Unmarshal([]byte(`{"type":"at","data":{"qq":99}}`), &seg))
	assert.Equal(t, "99", seg.str("qq"))

	var ev Event
	frame := `{"post_type":"message","message_type":"group","self_id":99,"message":[{"type":"at","data":{"qq":99}}]}`
	require.NoError(t, json.Unmarshal([]byte(frame), &ev))
	assert.True(t, ev.AtMe())
}

func TestMetaEvent(t *testing.T) {
	frame := `{"post_type":"meta_event","meta_event_type":"heartbeat","self_id":99}`
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(frame), &ev))
	assert.True(t, ev.IsMeta())
	assert.False(t, ev.IsMessage())
}

func TestSegmentConstructors(t *testing.T) {
	b, err := json.Marshal([]Segment{Text("hi"), Image("file:///tmp/x.png"), At(42)})
	require.NoError(t, err)

	var segs []Segment
	require.NoError(t, json.Unmarshal(b, &segs))
	require.Len(t, segs, 3)
	assert.Equal(t, "text", segs[0].Type)
	assert.Equal(t, "hi", segs[0].str("text"))
	assert.Equal(t, "image", segs[1].Type)
	assert.Equal(t, "file:///tmp/x.png", segs[1].str("file"))
	assert.Equal(t, "at", segs[2].Type)
	assert.Equal(t, "42", segs[2].str("qq"))
}

func TestAPIResponseErr(t *testing.T) {
	ok := APIResponse{Status: "ok", Retcode: 0}
	assert.NoError(t, ok.Err())

	async := APIResponse{Status: "async", Retcode: 1}
	assert.NoError(t, async.Err())

	failed := APIResponse{Status: "failed", Retcode: 1404, Wording: "no such group"}
	err := failed.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such group")
}
