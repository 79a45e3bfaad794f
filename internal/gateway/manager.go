package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harryheman/slack-clone/internal/auth"
	"github.com/harryheman/slack-clone/internal/metrics"
	"github.com/harryheman/slack-clone/internal/models"
	"github.com/harryheman/slack-clone/internal/redis"
	"golang.org/x/time/rate"
)

const (
	busPrefix      = "events:"
	publishTimeout = 2 * time.Second
	authzTimeout   = 5 * time.Second

	defaultOpsPerSecond = 5
	defaultOpsBurst     = 20
)

// ScopeAuthorizer decides whether a user may follow a scope and returns the
// key its events are published under.
type ScopeAuthorizer interface {
	AuthorizeScope(ctx context.Context, userID int64, scope models.Scope) (string, error)
}

// Manager tracks websocket connections and the scopes each one follows.
// With a Redis client, events fan out through pub/sub so every instance
// reaches its own subscribers; without one, delivery is local.
type Manager struct {
	mu            sync.RWMutex
	connections   map[*Connection]struct{}
	subscriptions map[string]map[*Connection]struct{} // scope key → connections

	tokens *auth.TokenService
	authz  ScopeAuthorizer
	redis  *redis.Client

	opsPerSecond rate.Limit
	opsBurst     int
}

// NewManager creates a new gateway Manager. redisClient may be nil.
func NewManager(tokens *auth.TokenService, redisClient *redis.Client) *Manager {
	return &Manager{
		connections:   make(map[*Connection]struct{}),
		subscriptions: make(map[string]map[*Connection]struct{}),
		tokens:        tokens,
		redis:         redisClient,
		opsPerSecond:  defaultOpsPerSecond,
		opsBurst:      defaultOpsBurst,
	}
}

// SetAuthorizer installs the check used by SUBSCRIBE. The message service
// implements it and itself depends on the Manager, hence the setter.
func (m *Manager) SetAuthorizer(a ScopeAuthorizer) {
	m.authz = a
}

// Publish implements Dispatcher.
func (m *Manager) Publish(scopeKey, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		slog.Error("marshal event error", "event", event, "error", err)
		return
	}
	ev := ScopedEvent{Scope: scopeKey, Name: event, Data: raw}

	if m.redis == nil {
		m.deliver(ev)
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal scoped event error", "event", event, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := m.redis.Publish(ctx, busPrefix+scopeKey, payload); err != nil {
		// Local readers still hear about it; remote instances miss this one.
		slog.Warn("event bus publish failed, delivering locally", "scope", scopeKey, "event", event, "error", err)
		m.deliver(ev)
	}
}

// Run relays events from the Redis bus to local subscribers until ctx is
// done. Without Redis it just waits.
func (m *Manager) Run(ctx context.Context) error {
	if m.redis == nil {
		<-ctx.Done()
		return nil
	}

	sub, err := m.redis.PSubscribe(ctx, busPrefix+"*")
	if err != nil {
		return err
	}
	defer sub.Close()
	slog.Info("gateway event bus subscribed")

	msgs := sub.Messages()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev ScopedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Warn("dropping malformed bus event", "channel", msg.Channel, "error", err)
				continue
			}
			if ev.Scope == "" {
				ev.Scope = strings.TrimPrefix(msg.Channel, busPrefix)
			}
			m.deliver(ev)
		}
	}
}

// deliver writes ev to every local connection following its scope.
func (m *Manager) deliver(ev ScopedEvent) {
	m.mu.RLock()
	subs := m.subscriptions[ev.Scope]
	conns := make([]*Connection, 0, len(subs))
	for c := range subs {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		c.SendEvent(ev.Name, ev.Data)
	}
	if len(conns) > 0 {
		metrics.GatewayEvents.WithLabelValues(ev.Name).Add(float64(len(conns)))
	}
}

// register adds an identified connection to the manager.
func (m *Manager) register(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.connections[c]; ok {
		return
	}
	m.connections[c] = struct{}{}
	metrics.GatewayConnections.Inc()
}

// unregister removes a connection and all of its subscriptions.
func (m *Manager) unregister(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.connections[c]; !ok {
		return
	}
	delete(m.connections, c)
	metrics.GatewayConnections.Dec()

	for key := range c.scopes {
		m.removeLocked(c, key)
	}
}

func (m *Manager) subscribe(c *Connection, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subscriptions[key] == nil {
		m.subscriptions[key] = make(map[*Connection]struct{})
	}
	m.subscriptions[key][c] = struct{}{}
	c.scopes[key] = struct{}{}
}

func (m *Manager) unsubscribe(c *Connection, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(c, key)
}

func (m *Manager) removeLocked(c *Connection, key string) {
	delete(c.scopes, key)
	if subs, ok := m.subscriptions[key]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(m.subscriptions, key)
		}
	}
}

// handleIdentify processes an IDENTIFY payload from a client.
func (m *Manager) handleIdentify(c *Connection, data json.RawMessage) {
	if c.UserID != 0 {
		c.SendInvalid("ALREADY_IDENTIFIED", "connection is already identified")
		return
	}

	var identify IdentifyData
	if err := json.Unmarshal(data, &identify); err != nil {
		c.SendInvalid("INVALID_PAYLOAD", "malformed identify payload")
		c.Close()
		return
	}

	userID, err := m.tokens.Validate(identify.Token)
	if err != nil {
		slog.Warn("invalid token in identify", "error", err)
		c.SendInvalid("INVALID_TOKEN", "invalid or expired token")
		c.Close()
		return
	}

	c.UserID = userID
	c.SessionID = uuid.NewString()
	m.register(c)

	c.SendEvent(EventReady, ReadyData{SessionID: c.SessionID, UserID: c.UserID})
}

// handleSubscribe authorizes and starts following a scope.
func (m *Manager) handleSubscribe(c *Connection, data json.RawMessage) {
	if c.UserID == 0 {
		c.SendInvalid("NOT_IDENTIFIED", "identify before subscribing")
		return
	}

	scope, err := decodeScope(data)
	if err != nil {
		c.SendInvalid("INVALID_SCOPE", err.Error())
		return
	}
	if m.authz == nil {
		c.SendInvalid("SUBSCRIBE_DENIED", "subscriptions are not available")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), authzTimeout)
	defer cancel()

	key, err := m.authz.AuthorizeScope(ctx, c.UserID, scope)
	if err != nil {
		c.SendInvalid("SUBSCRIBE_DENIED", err.Error())
		return
	}

	m.subscribe(c, key)
	c.SendEvent(EventSubscribed, SubscribedData{Scope: key})
}

// handleUnsubscribe stops following a scope. Unknown scopes are ignored.
func (m *Manager) handleUnsubscribe(c *Connection, data json.RawMessage) {
	if c.UserID == 0 {
		c.SendInvalid("NOT_IDENTIFIED", "identify before unsubscribing")
		return
	}
	scope, err := decodeScope(data)
	if err != nil {
		c.SendInvalid("INVALID_SCOPE", err.Error())
		return
	}
	m.unsubscribe(c, scope.Key())
}
