package dbus

import (
	"context"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseReason_String(t *testing.T) {
	tests := []struct {
		reason CloseReason
		want   string
	}{
		{CloseReasonExpired, "expired"},
		{CloseReasonDismissed, "dismissed"},
		{CloseReasonClosed, "closed"},
		{CloseReasonUndefined, "undefined"},
		{CloseReason(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.reason.String())
		})
	}
}

func TestMessage_Args(t *testing.T) {
	msg := Message{AppName: "app", Summary: "Hello", Body: "World", ExpireTimeout: -1}
	args := msg.args()

	require.Len(t, args, 8)
	assert.Equal(t, "app", args[0])
	assert.Equal(t, uint32(0), args[1])
	assert.Equal(t, "Hello", args[3])
	assert.Equal(t, "World", args[4])
	assert.Equal(t, []string{}, args[5])
	assert.Equal(t, map[string]dbus.Variant{}, args[6])
	assert.Equal(t, int32(-1), args[7])
}

func TestMessage_WithUrgency(t *testing.T) {
	base := Message{Hints: map[string]dbus.Variant{"category": dbus.MakeVariant("im")}}
	msg := base.WithUrgency(UrgencyCritical)

	assert.Equal(t, UrgencyCritical, msg.Hints["urgency"].Value())
	assert.Equal(t, "im", msg.Hints["category"].Value())
	_, mutated := base.Hints["urgency"]
	assert.False(t, mutated, "original hints untouched")
}

func closedSignal(body ...interface{}) *dbus.Signal {
	return &dbus.Signal{Name: DBusInterface + ".NotificationClosed", Body: body}
}

func TestNotifier_HandleSignal(t *testing.T) {
	n := NewNotifier(nil)

	var gotID uint32
	var gotReason CloseReason
	calls := 0
	n.track(7, func(id uint32, reason CloseReason) {
		calls++
		gotID = id
		gotReason = reason
	})

	n.handleSignal(closedSignal(uint32(8), uint32(1)))
	assert.Equal(t, 0, calls, "other ids are ignored")

	n.handleSignal(closedSignal(uint32(7), uint32(2)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint32(7), gotID)
	assert.Equal(t, CloseReasonDismissed, gotReason)

	n.handleSignal(closedSignal(uint32(7), uint32(2)))
	assert.Equal(t, 1, calls, "handlers fire once")
}

func TestNotifier_HandleSignalMalformed(t *testing.T) {
	n := NewNotifier(nil)
	calls := 0
	n.track(1, func(uint32, CloseReason) { calls++ })

	n.handleSignal(nil)
	n.handleSignal(&dbus.Signal{Name: DBusInterface + ".ActionInvoked", Body: []interface{}{uint32(1), "default"}})
	n.handleSignal(closedSignal(uint32(1)))
	n.handleSignal(closedSignal("1", uint32(1)))
	n.handleSignal(closedSignal(uint32(1), "expired"))

	assert.Equal(t, 0, calls)
}

func TestNotifier_NotStarted(t *testing.T) {
	n := NewNotifier(nil)

	_, err := n.Notify(context.Background(), Message{Summary: "x"}, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, n.CloseNotification(context.Background(), 1), ErrNotConnected)
	assert.NoError(t, n.Stop())
}
