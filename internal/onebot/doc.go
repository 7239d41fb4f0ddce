// Package onebot implements a forward-WebSocket client for OneBot v11
// compatible chat hosts (go-cqhttp, Lagrange, NapCat and friends).
// The client connects to the host's ws endpoint, receives JSON event
// frames and sends API calls, automatically reconnecting with capped
// exponential backoff.
//
// Events are surfaced through callback fields:
//   - OnConnecting, OnConnected, OnEvent, OnDisconnected, OnError.
//
// API calls are correlated to their responses via the OneBot echo
// field: CallAction registers a per-call callback, CallActionAsync
// wraps it into a blocking call with a timeout. A callback returning
// true consumes the frame.
//
// Robustness:
//   - writes are serialized (mutex + write deadline);
//   - keepalive via ws ping/pong and a read deadline refreshed on any
//     inbound frame (host heartbeats count);
//   - when traffic stays quiet the client sends a get_status call and
//     drops the connection if the host never answers;
//   - on connection loss pending callbacks fail fast and the read
//     loop reconnects.
//
// Example:
//
//	c := onebot.New(onebot.Config{URL: "ws://127.0.0.1:6700", AccessToken: "secret"})
//	c.OnEvent = func(ev *onebot.Event) {
//	    if ev.IsMessage() && ev.PlainText() == "ping" {
//	        _ = c.Reply(ev, onebot.Text("pong"))
//	    }
//	}
//	if err := c.Connect(ctx); err != nil { ... }
//	defer c.Disconnect()
package onebot
