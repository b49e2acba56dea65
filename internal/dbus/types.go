package dbus

import (
	"github.com/godbus/dbus/v5"
)

const (
	// DBusInterface is the notification interface name.
	DBusInterface = "org.freedesktop.Notifications"
	// DBusPath is the notification object path.
	DBusPath = "/org/freedesktop/Notifications"
	// DBusBusName is the bus name of the notification server.
	DBusBusName = "org.freedesktop.Notifications"
)

// CloseReason represents the reason for closing a notification.
// These values are defined by the freedesktop.org notification specification.
type CloseReason uint32

const (
	// CloseReasonExpired indicates the notification expired (timeout reached).
	CloseReasonExpired CloseReason = 1
	// CloseReasonDismissed indicates the user dismissed the notification.
	CloseReasonDismissed CloseReason = 2
	// CloseReasonClosed indicates the notification was closed via CloseNotification.
	CloseReasonClosed CloseReason = 3
	// CloseReasonUndefined is reserved by the notification protocol.
	CloseReasonUndefined CloseReason = 4
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonClosed:
		return "closed"
	case CloseReasonUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// Urgency levels of the freedesktop notification protocol.
const (
	UrgencyLow      byte = 0
	UrgencyNormal   byte = 1
	UrgencyCritical byte = 2
)

// Message is the payload of a Notify call.
type Message struct {
	AppName       string
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// WithUrgency returns a copy of m carrying the urgency hint.
func (m Message) WithUrgency(urgency byte) Message {
	hints := make(map[string]dbus.Variant, len(m.Hints)+1)
	for k, v := range m.Hints {
		hints[k] = v
	}
	hints["urgency"] = dbus.MakeVariant(urgency)
	m.Hints = hints
	return m
}

// args returns the Notify call arguments in wire order.
func (m Message) args() []interface{} {
	actions := m.Actions
	if actions == nil {
		actions = []string{}
	}
	hints := m.Hints
	if hints == nil {
		hints = map[string]dbus.Variant{}
	}
	return []interface{}{
		m.AppName,
		uint32(0), // replaces_id
		m.AppIcon,
		m.Summary,
		m.Body,
		actions,
		hints,
		m.ExpireTimeout,
	}
}
