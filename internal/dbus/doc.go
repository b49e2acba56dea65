// Package dbus is a client of the org.freedesktop.Notifications D-Bus
// interface, used to render campaigns as desktop notifications.
package dbus
