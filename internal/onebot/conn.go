package onebot

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const readTimeout = 90 * time.Second

// dial with auth header, pong handler and keepalive pings
func (c *Client) dialAndSetup() (*websocket.Conn, error) {
	var hdr http.Header
	if c.token != "" {
		hdr = http.Header{"Authorization": {"Bearer " + c.token}}
	}
	conn, _, err := websocket.DefaultDialer.Dial(c.url, hdr)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(16 << 20)

	c.touchActivity()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		c.touchActivity()
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	c.startKeepalive(conn)
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.cmu.Lock()
	c.conn = conn
	c.cmu.Unlock()
}

func (c *Client) getConn() *websocket.Conn {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	return c.conn
}

// safely tear down the current connection
func (c *Client) closeConn() {
	c.stopPing()
	c.cmu.Lock()
	conn := c.conn
	c.conn = nil
	c.cmu.Unlock()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
			time.Now().Add(500*time.Millisecond))
		_ = conn.Close()
	}
}

func (c *Client) startKeepalive(conn *websocket.Conn) {
	c.stopPing() // stop a previous goroutine, if any
	c.pingStop = make(chan struct{})
	stop := c.pingStop

	go func() {
		t := time.NewTicker(c.pingEvery)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				quiet := c.sinceLastActivity()
				// a busy connection keeps itself alive
				if quiet < c.pingEvery {
					continue
				}
				c.wmu.Lock()
				_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
				c.wmu.Unlock()
				if quiet > c.quietAfter {
					c.checkHostAlive()
				}
			case <-stop:
				return
			}
		}
	}()
}

// checkHostAlive asks the host for its status once traffic has gone
// quiet for too long. A host that keeps the TCP session open but stops
// answering would otherwise only be caught by the read deadline; no
// answer within statusTimeout costs it the connection, and the read
// loop reconnects.
func (c *Client) checkHostAlive() {
	done := make(chan struct{}, 1)
	err := c.GetStatus(func(*APIResponse) bool {
		done <- struct{}{}
		return true
	})
	if err != nil {
		return
	}
	select {
	case <-done:
		c.touchActivity()
	case <-time.After(c.statusTimeout):
		c.closeConn()
	}
}

func (c *Client) stopPing() {
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
}

func (c *Client) touchActivity() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *Client) sinceLastActivity() time.Duration {
	n := c.lastActivity.Load()
	if n == 0 {
		return time.Hour
	}
	return time.Since(time.Unix(0, n))
}
