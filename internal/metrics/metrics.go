// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/harryheman/slack-clone/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "slackclone"

var (
	ReactionToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reaction_toggles_total",
		Help:      "Reaction toggles by outcome (added or removed).",
	}, []string{"result"})

	PagesServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "message_pages_served_total",
		Help:      "Message pages served by scope kind.",
	}, []string{"scope"})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Messages created, replies included.",
	})

	StoreFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_failures_total",
		Help:      "Failed store or object storage calls by operation.",
	}, []string{"op"})

	GatewayConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "gateway_connections",
		Help:      "Open websocket connections.",
	})

	GatewayEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_events_delivered_total",
		Help:      "Events written to subscribed connections.",
	}, []string{"event"})
)

// ScopeKind labels a page by what it lists.
func ScopeKind(s models.Scope) string {
	switch {
	case s.ParentMessageID != 0:
		return "thread"
	case s.ChannelID != 0:
		return "channel"
	case s.ConversationID != 0:
		return "conversation"
	}
	return "unknown"
}
