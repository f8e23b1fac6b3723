package serialize

import (
	"errors"

	"github.com/relay-rt/relay/message"
	"github.com/ugorji/go/codec"
)

var mh = func() *codec.MsgpackHandle {
	h := new(codec.MsgpackHandle)
	h.WriteExt = true
	return h
}()

// MessagePackSerializer is an implementation of Serializer that handles
// serializing and deserializing msgpack encoded payloads.
type MessagePackSerializer struct{}

// SerializeBatch encodes a message batch into a msgpack payload.
func (s *MessagePackSerializer) SerializeBatch(msgs []*message.Message) ([]byte, error) {
	var b []byte
	err := codec.NewEncoderBytes(&b, mh).Encode(msgs)
	return b, err
}

// DeserializeBatch decodes a msgpack payload into a message batch.
func (s *MessagePackSerializer) DeserializeBatch(data []byte) ([]*message.Message, error) {
	var msgs []*message.Message
	if err := codec.NewDecoderBytes(data, mh).Decode(&msgs); err != nil {
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
