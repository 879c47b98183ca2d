// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded message
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data (JPEG frames)
	BinaryMessage
)

// Message represents a message to be broadcast to clients.
// An empty Topic reaches every client.
type Message struct {
	Topic string
	Type  MessageType
	Data  []byte
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(topic string, data []byte) Message {
	return Message{Topic: topic, Type: JSONMessage, Data: data}
}

// NewBinaryMessage creates a binary message
func NewBinaryMessage(topic string, data []byte) Message {
	return Message{Topic: topic, Type: BinaryMessage, Data: data}
}

func (m Message) matches(topic string) bool {
	return m.Topic == "" || topic == "" || m.Topic == topic
}
