package chargepoint

import (
	"evcp/utility"
	"fmt"
)

var (
	ErrTimeout            = utility.Err("request timed out")
	ErrCancelled          = utility.Err("request cancelled")
	ErrNotConnected       = utility.Err("transport not connected")
	ErrDisconnected       = utility.Err("transport disconnected while waiting for response")
	ErrUnknownConnector   = utility.Err("unknown connector")
	ErrNotCharging        = utility.Err("connector is not charging")
	ErrTransactionPending = utility.Err("transaction id not yet assigned by central system")
	ErrConnectorBusy      = utility.Err("connector is not available")
)

// SignatureError signing an outbound or verifying an inbound message failed
type SignatureError struct {
	Feature string
	Op      string
	Err     error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Feature, e.Err)
}

func (e *SignatureError) Unwrap() error {
	return e.Err
}

// TransportError the frame could not be handed to the transport
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
