// Package systemd controls the stream_camera.service unit over D-Bus.
package systemd

import (
	"context"

	"github.com/coreos/go-systemd/v22/dbus"
	godbus "github.com/godbus/dbus/v5"
)

// StreamUnit is the systemd unit running the FFmpeg stream when streampi is
// installed as a service.
const StreamUnit = "stream_camera.service"

// Manager handles systemd unit lifecycle operations via D-Bus.
type Manager struct {
	conn *dbus.Conn
}

// NewManager connects to the system bus; the stream unit runs system-wide,
// not in a user session.
func NewManager(ctx context.Context) (*Manager, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return &Manager{conn: conn}, nil
}

// UnitState retrieves the ActiveState property of a unit, e.g. "active" or
// "failed".
func (m *Manager) UnitState(ctx context.Context, unit string) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return "", err
	}
	return variantString(prop.Value), nil
}

// variantString unwraps a string-valued variant. Variant.String() quotes the
// value ("\"active\""), which is not what API clients should see.
func variantString(v godbus.Variant) string {
	if s, ok := v.Value().(string); ok {
		return s
	}
	return v.String()
}

// RestartUnit restarts a unit in replace mode.
func (m *Manager) RestartUnit(ctx context.Context, unit string) error {
	_, err := m.conn.RestartUnitContext(ctx, unit, "replace", nil)
	return err
}

// StartUnit starts a unit in replace mode.
func (m *Manager) StartUnit(ctx context.Context, unit string) error {
	_, err := m.conn.StartUnitContext(ctx, unit, "replace", nil)
	return err
}

// StopUnit stops a unit in replace mode.
func (m *Manager) StopUnit(ctx context.Context, unit string) error {
	_, err := m.conn.StopUnitContext(ctx, unit, "replace", nil)
	return err
}

// Close releases the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
