// Package bluez checks the local Bluetooth adapter through BlueZ on the
// system D-Bus.
package bluez

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/godbus/dbus/v5"

	"cleanxpert/internal/domain"
)

const (
	busName      = "org.bluez"
	adapterIface = "org.bluez.Adapter1"
	deviceIface  = "org.bluez.Device1"
	propsIface   = "org.freedesktop.DBus.Properties"
)

// busCaller is the subset of *dbus.Conn the adapter uses.
type busCaller interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	BusObject() dbus.BusObject
}

type Adapter struct {
	conn   busCaller
	closer func() error
	path   dbus.ObjectPath
	logger *slog.Logger
}

// NewAdapter connects to the system bus. name is the adapter, e.g. "hci0".
func NewAdapter(name string, logger *slog.Logger) (*Adapter, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to system bus: %w", err)
	}
	return &Adapter{
		conn:   conn,
		closer: conn.Close,
		path:   adapterPath(name),
		logger: logger,
	}, nil
}

func adapterPath(name string) dbus.ObjectPath {
	if name == "" {
		name = "hci0"
	}
	return dbus.ObjectPath("/org/bluez/" + name)
}

// devicePath converts "AA:BB:CC:DD:EE:FF" to "<adapter>/dev_AA_BB_CC_DD_EE_FF".
func (a *Adapter) devicePath(addr string) dbus.ObjectPath {
	return dbus.ObjectPath(string(a.path) + "/dev_" + strings.ReplaceAll(addr, ":", "_"))
}

func (a *Adapter) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

// EnsureReady fails with domain.ErrBluetoothUnsupported when BlueZ or the
// adapter is missing, powers the adapter on when it is off, and warns when
// the device does not advertise the endpoint's service.
func (a *Adapter) EnsureReady(ctx context.Context, endpoint domain.Endpoint) error {
	var names []string
	if err := a.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return fmt.Errorf("listing bus names: %w", err)
	}
	if !slices.Contains(names, busName) {
		return fmt.Errorf("%w: org.bluez not found on system bus", domain.ErrBluetoothUnsupported)
	}

	powered, err := a.getBool(ctx, a.path, adapterIface, "Powered")
	if err != nil {
		return fmt.Errorf("%w: adapter %s: %w", domain.ErrBluetoothUnsupported, a.path, err)
	}
	if !powered {
		a.logger.Info("bluetooth adapter is off, powering on", "adapter", a.path)
		if err := a.setProp(ctx, a.path, adapterIface, "Powered", true); err != nil {
			return fmt.Errorf("powering on adapter: %w", err)
		}
	}

	a.checkService(ctx, endpoint)
	return nil
}

func (a *Adapter) checkService(ctx context.Context, endpoint domain.Endpoint) {
	path := a.devicePath(endpoint.Address())

	v, err := a.getProp(ctx, path, deviceIface, "UUIDs")
	if err != nil {
		a.logger.Warn("device not known to bluez, is it paired?", "address", endpoint.Address(), "error", err)
		return
	}
	uuids, ok := v.Value().([]string)
	if !ok {
		return
	}
	want := endpoint.ServiceID().String()
	for _, u := range uuids {
		if strings.EqualFold(u, want) {
			return
		}
	}
	a.logger.Warn("device does not advertise the serial service", "address", endpoint.Address(), "service", want)
}

func (a *Adapter) getProp(ctx context.Context, path dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	obj := a.conn.Object(busName, path)
	var v dbus.Variant
	err := obj.CallWithContext(ctx, propsIface+".Get", 0, iface, prop).Store(&v)
	return v, err
}

func (a *Adapter) setProp(ctx context.Context, path dbus.ObjectPath, iface, prop string, val any) error {
	obj := a.conn.Object(busName, path)
	return obj.CallWithContext(ctx, propsIface+".Set", 0, iface, prop, dbus.MakeVariant(val)).Err
}

func (a *Adapter) getBool(ctx context.Context, path dbus.ObjectPath, iface, prop string) (bool, error) {
	v, err := a.getProp(ctx, path, iface, prop)
	if err != nil {
		return false, err
	}
	val, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("property %s is not bool", prop)
	}
	return val, nil
}
