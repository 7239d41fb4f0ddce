package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Config holds the connection parameters for a OneBot v11 host.
type Config struct {
	URL         string `json:"ws_url"`       // ws://host:port or wss://...
	AccessToken string `json:"access_token"` // optional, sent as Bearer header
}

// APIResponse is the host's reply to an API call.
type APIResponse struct {
	Status  string          `json:"status"`
	Retcode int             `json:"retcode"`
	Msg     string          `json:"msg,omitempty"`
	Wording string          `json:"wording,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Echo    string          `json:"echo,omitempty"`
}

func (r *APIResponse) Err() error {
	if r.Status == "failed" || (r.Retcode != 0 && r.Retcode != 1) {
		w := r.Wording
		if w == "" {
			w = r.Msg
		}
		return fmt.Errorf("api call failed: retcode=%d %s", r.Retcode, w)
	}
	return nil
}

type apiRequest struct {
	Action string `json:"action"`
	Params any    `json:"params,omitempty"`
	Echo   string `json:"echo,omitempty"`
}

// Client is a forward-WebSocket OneBot v11 client. Inbound events and
// connection state changes are surfaced through callback fields, API
// calls are correlated to their responses through the echo field.
type Client struct {
	url   string
	token string

	cmu  sync.Mutex // guards conn
	conn *websocket.Conn
	echo atomic.Uint64

	mu     sync.Mutex
	cbs    map[string]func(*APIResponse) bool
	closed atomic.Bool

	wmu          sync.Mutex    // serializes websocket writes
	pingStop     chan struct{} // stop channel for the keepalive goroutine
	lastActivity atomic.Int64  // unix nanos of the last successful read

	// keepalive tuning, fixed except in tests
	pingEvery     time.Duration
	quietAfter    time.Duration
	statusTimeout time.Duration

	// event callbacks, set before Connect
	OnConnecting   func()
	OnConnected    func()
	OnEvent        func(*Event)
	OnDisconnected func()
	OnError        func(error)
}

func New(cfg Config) *Client {
	return &Client{
		url:           cfg.URL,
		token:         cfg.AccessToken,
		cbs:           make(map[string]func(*APIResponse) bool),
		pingEvery:     15 * time.Second,
		quietAfter:    30 * time.Second,
		statusTimeout: 8 * time.Second,
	}
}

// Connect dials the host and starts the read loop. Cancel the context
// for a soft shutdown of the loop.
func (c *Client) Connect(ctx context.Context) error {
	if c.OnConnecting != nil {
		c.OnConnecting()
	}
	conn, err := c.dialAndSetup()
	if err != nil {
		return err
	}
	c.setConn(conn)
	c.closed.Store(false)

	if c.OnConnected != nil {
		c.OnConnected()
	}

	go c.readLoop(ctx)
	return nil
}

func (c *Client) Disconnect() {
	c.closed.Store(true)
	c.closeConn()
	if c.OnDisconnected != nil {
		c.OnDisconnected()
	}
}

func (c *Client) IsConnected() bool {
	return c.getConn() != nil && !c.closed.Load()
}

// CallAction sends an API request. If cb != nil it runs once on the
// response carrying the same echo; cb returning true consumes the
// frame so OnEvent never sees it.
func (c *Client) CallAction(action string, params any, cb func(*APIResponse) bool) error {
	conn := c.getConn()
	if conn == nil {
		return errors.New("not connected")
	}
	echo := fmt.Sprintf("replybot-%d", c.echo.Add(1))

	if cb != nil {
		c.mu.Lock()
		c.cbs[echo] = cb
		c.mu.Unlock()
	}

	data, err := json.Marshal(apiRequest{Action: action, Params: params, Echo: echo})
	if err != nil {
		return err
	}

	c.wmu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	werr := conn.WriteMessage(websocket.TextMessage, data)
	c.wmu.Unlock()

	if werr != nil {
		// network died between prepare and write, drop the callback
		c.mu.Lock()
		delete(c.cbs, echo)
		c.mu.Unlock()
		return werr
	}
	return nil
}

// CallActionAsync waits for the response or a timeout.
func (c *Client) CallActionAsync(action string, params any, timeout time.Duration) (*APIResponse, error) {
	respCh := make(chan *APIResponse, 1)
	errCh := make(chan error, 1)

	err := c.CallAction(action, params, func(r *APIResponse) bool {
		if e := r.Err(); e != nil {
			errCh <- e
			return true
		}
		respCh <- r
		return true
	})
	if err != nil {
		return nil, err
	}

	select {
	case r := <-respCh:
		return r, nil
	case e := <-errCh:
		return nil, e
	case <-time.After(timeout):
		return nil, fmt.Errorf("timeout waiting for %s response", action)
	}
}
