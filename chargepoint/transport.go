package chargepoint

import "context"

// Transport carries opaque OCPP-J frames to and from the central system
type Transport interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, data []byte) error
	SetMessageHandler(handler func(data []byte))
	SetDisconnectHandler(handler func(err error))
	IsConnected() bool
	Close() error
}
