package domain

import "errors"

// Failure taxonomy of the serial link. Every failure is permanent for the
// lifetime of the process; only ErrBluetoothUnsupported stops it.
var (
	ErrConnectionFailure    = errors.New("connection failed")
	ErrSendFailure          = errors.New("command sending failed")
	ErrReceiveEnded         = errors.New("data reception ended")
	ErrCloseFailure         = errors.New("error closing socket")
	ErrBluetoothUnsupported = errors.New("bluetooth not supported")
)
