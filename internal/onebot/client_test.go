package onebot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost is a minimal OneBot endpoint: it pushes one event on
// connect and answers API calls by echoing frames back.
func fakeHost(t *testing.T, wantToken string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantToken != "" {
			require.Equal(t, "Bearer "+wantToken, r.Header.Get("Authorization"))
		}
		conn, err := up.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		event := `{"post_type":"message","message_type":"private","self_id":99,"user_id":7,"message":"ping"}`
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(event)))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req struct {
				Action string `json:"action"`
				Echo   string `json:"echo"`
			}
			require.NoError(t, json.Unmarshal(data, &req))

			var resp APIResponse
			switch req.Action {
			case "get_status":
				resp = APIResponse{Status: "ok", Retcode: 0, Data: json.RawMessage(`{"online":true}`), Echo: req.Echo}
			default:
				resp = APIResponse{Status: "failed", Retcode: 1404, Wording: "unsupported action", Echo: req.Echo}
			}
			out, _ := json.Marshal(resp)
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, out))
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientEventsAndCalls(t *testing.T) {
	srv := fakeHost(t, "s3cret")
	defer srv.Close()

	c := New(Config{URL: wsURL(srv), AccessToken: "s3cret"})

	events := make(chan *Event, 1)
	c.OnEvent = func(ev *Event) {
		select {
		case events <- ev:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()
	assert.True(t, c.IsConnected())

	select {
	case ev := <-events:
		assert.Equal(t, "ping", ev.PlainText())
		assert.Equal(t, int64(7), ev.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("event never arrived")
	}

	resp, err := c.CallActionAsync("get_status", nil, 2*time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"online":true}`, string(resp.Data))
}

func TestClientSurfacesAPIFailures(t *testing.T) {
	srv := fakeHost(t, "")
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()

	_, err := c.CallActionAsync("no_such_action", nil, 2*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported action")
}

func TestCallActionRequiresConnection(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1"})
	err := c.CallAction("get_status", nil, nil)
	assert.Error(t, err)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	srv := fakeHost(t, "")
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	c.Disconnect()
	c.Disconnect()
	assert.False(t, c.IsConnected())
}

// A host that keeps TCP open but answers nothing. Incoming pings are
// swallowed so the client sees no pongs either.
func deafHost(t *testing.T, sawStatus chan<- struct{}, conns chan<- int) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	var mu sync.Mutex
	n := 0

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		mu.Lock()
		n++
		me := n
		mu.Unlock()
		conns <- me

		conn.SetPingHandler(func(string) error { return nil })
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req struct {
				Action string `json:"action"`
				Echo   string `json:"echo"`
			}
			require.NoError(t, json.Unmarshal(data, &req))
			if req.Action != "get_status" {
				continue
			}
			if me == 1 {
				// first connection plays dead
				select {
				case sawStatus <- struct{}{}:
				default:
				}
				continue
			}
			resp := APIResponse{Status: "ok", Retcode: 0, Data: json.RawMessage(`{"online":true}`), Echo: req.Echo}
			out, _ := json.Marshal(resp)
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, out))
		}
	}))
}

func TestQuietHostIsStatusCheckedAndDropped(t *testing.T) {
	sawStatus := make(chan struct{}, 1)
	conns := make(chan int, 4)
	srv := deafHost(t, sawStatus, conns)
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)})
	c.pingEvery = 20 * time.Millisecond
	c.quietAfter = 30 * time.Millisecond
	c.statusTimeout = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()

	require.Equal(t, 1, <-conns)

	select {
	case <-sawStatus:
	case <-time.After(2 * time.Second):
		t.Fatal("quiet connection was never status-checked")
	}

	// an unanswered check costs the connection and the loop redials
	select {
	case n := <-conns:
		assert.Equal(t, 2, n)
	case <-time.After(5 * time.Second):
		t.Fatal("client never reconnected after the host went deaf")
	}
}

func TestCallsRaceDisconnectSafely(t *testing.T) {
	srv := fakeHost(t, "")
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = c.CallAction("get_status", nil, nil)
		}
	}()
	go func() {
		defer wg.Done()
		time.Sleep(2 * time.Millisecond)
		c.Disconnect()
	}()
	wg.Wait()

	assert.False(t, c.IsConnected())
	assert.Error(t, c.CallAction("get_status", nil, nil))
}
