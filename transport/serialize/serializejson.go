package serialize

import (
	"encoding/json"
	"errors"

	"github.com/relay-rt/relay/message"
)

// JSONSerializer is an implementation of Serializer that handles serializing
// and deserializing JSON encoded payloads.
type JSONSerializer struct{}

// SerializeBatch encodes a message batch into a JSON payload.
func (s *JSONSerializer) SerializeBatch(msgs []*message.Message) ([]byte, error) {
	return json.Marshal(msgs)
}

// DeserializeBatch decodes a JSON payload into a message batch.
func (s *JSONSerializer) DeserializeBatch(data []byte) ([]*message.Message, error) {
	var msgs []*message.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, errors.New("empty message batch")
	}
	for _, msg := range msgs {
		if msg == nil {
			return nil, errors.New("invalid message in batch")
		}
	}
	return msgs, nil
}
