package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type frameHead struct {
	PostType string `json:"post_type"`
	Echo     string `json:"echo"`
}

func (c *Client) readLoop(ctx context.Context) {
	defer func() {
		c.closed.Store(true)
		c.closeConn()
		if c.OnDisconnected != nil {
			c.OnDisconnected()
		}
	}()

	// tear down on context cancellation
	go func() {
		<-ctx.Done()
		c.closeConn()
	}()

	backoff := time.Second

	for {
		conn := c.getConn()
		if conn == nil {
			err := fmt.Errorf("connection is nil")
			if c.OnError != nil && !c.closed.Load() {
				c.OnError(err)
			}
			// fall through to the reconnect branch below
		} else {
			_, data, err := conn.ReadMessage()
			if err == nil {
				c.touchActivity()
				_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

				var head frameHead
				if uerr := json.Unmarshal(data, &head); uerr != nil {
					if c.OnError != nil {
						c.OnError(uerr)
					}
					continue
				}

				// API responses, matched to callers by echo
				if head.PostType == "" {
					var resp APIResponse
					if uerr := json.Unmarshal(data, &resp); uerr != nil {
						if c.OnError != nil {
							c.OnError(uerr)
						}
						continue
					}
					c.mu.Lock()
					cb, ok := c.cbs[resp.Echo]
					if ok {
						delete(c.cbs, resp.Echo)
					}
					c.mu.Unlock()
					if ok && cb(&resp) {
						backoff = time.Second
						continue
					}
					continue
				}

				var ev Event
				if uerr := json.Unmarshal(data, &ev); uerr != nil {
					if c.OnError != nil {
						c.OnError(uerr)
					}
					continue
				}
				if c.OnEvent != nil {
					c.OnEvent(&ev)
				}

				backoff = time.Second
				continue
			}

			// read error
			if c.OnError != nil && !c.closed.Load() {
				c.OnError(err)
			}
			if c.closed.Load() {
				return
			}
		}

		// close and fail the waiters
		c.closeConn()
		c.failPendingCallbacks(fmt.Errorf("connection lost"))
		if c.closed.Load() {
			return
		}

		// reconnect with backoff
		for !c.closed.Load() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
				conn, derr := c.dialAndSetup()
				if derr != nil {
					if c.OnError != nil {
						c.OnError(fmt.Errorf("reconnect failed (wait %v): %w", backoff, derr))
					}
					if backoff < 30*time.Second {
						backoff *= 2
						if backoff > 30*time.Second {
							backoff = 30 * time.Second
						}
					}
					continue
				}
				c.setConn(conn)
				c.touchActivity()
				if c.OnConnected != nil {
					c.OnConnected()
				}
				backoff = time.Second
				goto CONTINUE_READ
			}
		}
	CONTINUE_READ:
		continue
	}
}

// fail every pending callback when the connection drops
func (c *Client) failPendingCallbacks(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cbs) == 0 {
		return
	}
	for k, cb := range c.cbs {
		if cb != nil {
			cb(&APIResponse{Status: "failed", Retcode: -1, Msg: err.Error(), Echo: k})
		}
		delete(c.cbs, k)
	}
}
