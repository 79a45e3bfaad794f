package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harryheman/slack-clone/internal/gateway"
	"github.com/harryheman/slack-clone/internal/models"
)

const gatewayWriteWait = 10 * time.Second

// Event is one DISPATCH received from the gateway.
type Event struct {
	Name     string
	Sequence int64
	Data     json.RawMessage
}

// GatewayError is an INVALID payload that ended a subscription.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %s", e.Code, e.Message)
}

// Subscribe connects to the gateway, identifies with the client's token and
// follows scope, calling handle for every dispatched event, starting with
// SUBSCRIBED. It blocks until ctx is done, the server rejects an op, or the
// connection drops.
func (c *Client) Subscribe(ctx context.Context, scope models.Scope, handle func(Event)) error {
	u, err := url.Parse(c.baseURL + "/gateway")
	if err != nil {
		return fmt.Errorf("gateway url: %w", err)
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer ws.Close()

	// Unblocks ReadMessage on cancellation.
	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	var hello gateway.HelloData
	if err := readOp(ws, gateway.OpHello, &hello); err != nil {
		return c.wrapReadErr(ctx, "hello", err)
	}

	var mu sync.Mutex
	send := func(op int, data any) error {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		_ = ws.SetWriteDeadline(time.Now().Add(gatewayWriteWait))
		return ws.WriteJSON(gateway.GatewayPayload{Op: op, Data: raw})
	}

	if err := send(gateway.OpIdentify, gateway.IdentifyData{Token: c.token}); err != nil {
		return fmt.Errorf("identify: %w", err)
	}
	if _, err := readEvent(ws, gateway.EventReady); err != nil {
		return c.wrapReadErr(ctx, "identify", err)
	}
	if err := send(gateway.OpSubscribe, gateway.SubscribeData{
		ChannelID:       formatID(scope.ChannelID),
		ConversationID:  formatID(scope.ConversationID),
		ParentMessageID: formatID(scope.ParentMessageID),
	}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := send(gateway.OpHeartbeat, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		ev, err := readEvent(ws, "")
		if err != nil {
			return c.wrapReadErr(ctx, "read", err)
		}
		handle(ev)
	}
}

func (c *Client) wrapReadErr(ctx context.Context, stage string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return err
	}
	return fmt.Errorf("gateway %s: %w", stage, err)
}

// readOp reads payloads until one with op arrives and decodes its data.
func readOp(ws *websocket.Conn, op int, into any) error {
	for {
		var p gateway.GatewayPayload
		if err := ws.ReadJSON(&p); err != nil {
			return err
		}
		if p.Op == gateway.OpInvalid {
			return invalidError(p.Data)
		}
		if p.Op == op {
			return json.Unmarshal(p.Data, into)
		}
	}
}

// readEvent reads payloads until a dispatch arrives, skipping heartbeats.
// With a non-empty name it skips other events too.
func readEvent(ws *websocket.Conn, name string) (Event, error) {
	for {
		var p gateway.GatewayPayload
		if err := ws.ReadJSON(&p); err != nil {
			return Event{}, err
		}
		switch p.Op {
		case gateway.OpInvalid:
			return Event{}, invalidError(p.Data)
		case gateway.OpDispatch:
			if p.Event == nil || (name != "" && *p.Event != name) {
				continue
			}
			ev := Event{Name: *p.Event, Data: p.Data}
			if p.Sequence != nil {
				ev.Sequence = *p.Sequence
			}
			return ev, nil
		}
	}
}

func invalidError(raw json.RawMessage) error {
	var d gateway.InvalidData
	if err := json.Unmarshal(raw, &d); err != nil {
		return &GatewayError{Code: "INVALID", Message: "malformed invalid payload"}
	}
	return &GatewayError{Code: d.Code, Message: d.Message}
}
