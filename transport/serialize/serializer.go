/*
Package serialize provides a Serializer interface with implementations that
encode and decode relay message batches in various ways.

The wire unit is a batch: one transport frame carries an ordered list of
messages, and the whole batch is handed to the gate at once.
*/
package serialize

import "github.com/relay-rt/relay/message"

// Serialization indicates the data serialization format used on a
// connection.
type Serialization int

const (
	// Use JSON-encoded frames as a payload.
	JSON Serialization = iota
	// Use msgpack-encoded frames as a payload.
	MSGPACK
)

// Serializer is the interface implemented by an object that can serialize
// and deserialize message batches.
type Serializer interface {
	SerializeBatch([]*message.Message) ([]byte, error)
	DeserializeBatch([]byte) ([]*message.Message, error)
}
