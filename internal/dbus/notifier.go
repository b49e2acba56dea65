package dbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

// CloseHandler is called once when a sent notification is closed.
type CloseHandler func(id uint32, reason CloseReason)

// ErrNotConnected is returned when the notifier has not been started.
var ErrNotConnected = errors.New("not connected to D-Bus")

// Notifier sends notifications to the desktop notification server and
// reports when they close.
type Notifier struct {
	conn   *dbus.Conn
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[uint32]CloseHandler
	running  bool

	signals chan *dbus.Signal
	doneCh  chan struct{}
}

// NewNotifier creates a Notifier. Call Start before sending.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		logger:   logger,
		handlers: make(map[uint32]CloseHandler),
	}
}

// Start connects to the session bus and subscribes to NotificationClosed.
func (n *Notifier) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return nil
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	err = conn.AddMatchSignal(
		dbus.WithMatchObjectPath(DBusPath),
		dbus.WithMatchInterface(DBusInterface),
		dbus.WithMatchMember("NotificationClosed"),
	)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to NotificationClosed: %w", err)
	}

	n.conn = conn
	n.signals = make(chan *dbus.Signal, 16)
	n.doneCh = make(chan struct{})
	conn.Signal(n.signals)
	n.running = true

	go n.processSignals()

	n.logger.Info("connected to notification server")
	return nil
}

// Notify sends msg and registers onClose for its id.
func (n *Notifier) Notify(ctx context.Context, msg Message, onClose CloseHandler) (uint32, error) {
	// Holding the lock across the call keeps a fast NotificationClosed from
	// being processed before the handler is registered.
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return 0, ErrNotConnected
	}

	var id uint32
	obj := n.conn.Object(DBusBusName, dbus.ObjectPath(DBusPath))
	call := obj.CallWithContext(ctx, DBusInterface+".Notify", 0, msg.args()...)
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("failed to send notification: %w", err)
	}

	if onClose != nil {
		n.handlers[id] = onClose
	}
	n.logger.Debug("notification sent", "id", id, "summary", msg.Summary)
	return id, nil
}

// CloseNotification asks the server to close a notification.
func (n *Notifier) CloseNotification(ctx context.Context, id uint32) error {
	n.mu.Lock()
	conn := n.conn
	running := n.running
	n.mu.Unlock()

	if !running {
		return ErrNotConnected
	}

	obj := conn.Object(DBusBusName, dbus.ObjectPath(DBusPath))
	if err := obj.CallWithContext(ctx, DBusInterface+".CloseNotification", 0, id).Err; err != nil {
		return fmt.Errorf("failed to close notification %d: %w", id, err)
	}
	return nil
}

// Stop disconnects from the bus. Pending close handlers are dropped.
func (n *Notifier) Stop() error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil
	}
	n.running = false
	conn := n.conn
	n.handlers = make(map[uint32]CloseHandler)
	n.mu.Unlock()

	conn.RemoveSignal(n.signals)
	err := conn.Close()
	close(n.signals)
	<-n.doneCh
	return err
}

func (n *Notifier) processSignals() {
	defer close(n.doneCh)
	for sig := range n.signals {
		n.handleSignal(sig)
	}
}

// handleSignal dispatches a NotificationClosed signal to its handler.
func (n *Notifier) handleSignal(sig *dbus.Signal) {
	if sig == nil || sig.Name != DBusInterface+".NotificationClosed" {
		return
	}
	if len(sig.Body) < 2 {
		n.logger.Warn("malformed NotificationClosed signal", "body_len", len(sig.Body))
		return
	}
	id, ok := sig.Body[0].(uint32)
	if !ok {
		n.logger.Warn("invalid notification id type")
		return
	}
	reason, ok := sig.Body[1].(uint32)
	if !ok {
		n.logger.Warn("invalid close reason type")
		return
	}

	n.mu.Lock()
	handler, found := n.handlers[id]
	delete(n.handlers, id)
	n.mu.Unlock()

	if !found {
		return
	}
	n.logger.Debug("notification closed", "id", id, "reason", CloseReason(reason).String())
	handler(id, CloseReason(reason))
}

// track registers a close handler without sending anything.
func (n *Notifier) track(id uint32, onClose CloseHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[id] = onClose
}
