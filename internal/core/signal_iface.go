package core

//go:generate mockgen -source=signal_iface.go -destination=../mocks/signaling_mock.go -package=mocks

// QoS levels of the publish/subscribe transport.
const (
	QoSAtMostOnce  byte = 0
	QoSAtLeastOnce byte = 1
	QoSExactlyOnce byte = 2
)

type TransportState string

const (
	TransportConnecting   TransportState = "connecting"
	TransportConnected    TransportState = "connected"
	TransportError        TransportState = "error"
	TransportDisconnected TransportState = "disconnected"
)

// Signaling abstracts the device-scoped publish/subscribe channel.
// Owned by the adapter; sessions only publish and subscribe on their own topics.
type Signaling interface {
	// Publish is fire-and-forget at the given QoS.
	Publish(topic string, qos byte, payload []byte) error
	// Subscribe registers handler for every message delivered on topic.
	Subscribe(topic string, qos byte, handler func(payload []byte)) error
	Unsubscribe(topic string) error
}

// Transport is a Signaling connection with its own lifecycle.
type Transport interface {
	Signaling
	// Connect starts connecting in the background; state changes are reported
	// through OnStateChange, reconnects included.
	Connect() error
	Disconnect()
	OnStateChange(func(TransportState))
}
