package domain

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidAddress = errors.New("invalid device address")

// SerialPortServiceID is the well-known Serial Port Profile service class.
var SerialPortServiceID = uuid.MustParse("00001101-0000-1000-8000-00805F9B34FB")

const (
	StatusConnected    = "CleanXpert Connected"
	StatusDisconnected = "CleanXpert Disconnected"
)

// Endpoint identifies the remote serial service. It is immutable once built.
type Endpoint struct {
	address   string
	serviceID uuid.UUID
	channel   uint8
}

func NewEndpoint(address string, serviceID uuid.UUID, channel uint8) (Endpoint, error) {
	mac, err := net.ParseMAC(address)
	if err != nil || len(mac) != 6 {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if serviceID == uuid.Nil {
		serviceID = SerialPortServiceID
	}
	if channel == 0 {
		channel = 1
	}
	return Endpoint{
		address:   strings.ToUpper(mac.String()),
		serviceID: serviceID,
		channel:   channel,
	}, nil
}

func (e Endpoint) Address() string      { return e.address }
func (e Endpoint) ServiceID() uuid.UUID { return e.serviceID }
func (e Endpoint) Channel() uint8       { return e.channel }

// HardwareAddr returns the address bytes in transmission order.
func (e Endpoint) HardwareAddr() [6]byte {
	var out [6]byte
	mac, _ := net.ParseMAC(e.address)
	copy(out[:], mac)
	return out
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s/%s#%d", e.address, e.serviceID, e.channel)
}

type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)
