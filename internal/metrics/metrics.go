// Package metrics exposes prometheus counters for the advisory write paths:
// read cursor writes and mention notifications never surface errors to
// callers, so these counters are where their failures show up.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "huddle"

// Result label values
const (
	ResultOk      = "ok"
	ResultFailed  = "failed"
	ResultIgnored = "ignored"
)

var (
	// CursorWrites counts read cursor writes by scope and result
	CursorWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "readsync",
		Name:      "cursor_writes_total",
		Help:      "Read cursor writes issued by the read-status synchronizer.",
	}, []string{"scope", "result"})

	// MentionNotifications counts per-recipient mention notifications by result
	MentionNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "mention_notifications_total",
		Help:      "Mention notifications delivered to recipients.",
	}, []string{"scope", "result"})

	// WatchSessions tracks open gateway sessions holding watchers
	WatchSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "watch_sessions",
		Help:      "Open websocket sessions with active read-status watchers.",
	})

	// MessagesSent counts persisted messages by scope
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "message",
		Name:      "sent_total",
		Help:      "Messages persisted, by conversation scope.",
	}, []string{"scope"})
)
