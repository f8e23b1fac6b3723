package serialize

import (
	"reflect"
	"testing"

	"github.com/relay-rt/relay/message"
)

var testBatch = []*message.Message{
	{
		Topic:  message.TopicAuth,
		Action: message.ActionRequest,
		Data:   []byte(`{"username":"alice"}`),
	},
	{
		Topic:         message.TopicEvent,
		Action:        message.ActionSubscribe,
		Names:         []string{"news", "sports"},
		CorrelationID: "c1",
		IsBulk:        true,
	},
	{
		Topic:  message.TopicEvent,
		Action: message.ActionPublish,
		Name:   "news",
		Data:   []byte(`{"headline":"hi"}`),
	},
}

func testSerializer(t *testing.T, s Serializer) {
	b, err := s.SerializeBatch(testBatch)
	if err != nil {
		t.Fatal("serialization error:", err)
	}
	got, err := s.DeserializeBatch(b)
	if err != nil {
		t.Fatal("deserialization error:", err)
	}
	if len(got) != len(testBatch) {
		t.Fatal("expected", len(testBatch), "messages, got", len(got))
	}
	for i := range testBatch {
		if !reflect.DeepEqual(got[i], testBatch[i]) {
			t.Fatalf("message %d did not round-trip: %+v != %+v", i, got[i], testBatch[i])
		}
	}

	if _, err = s.DeserializeBatch(nil); err == nil {
		t.Fatal("expected error deserializing empty payload")
	}
}

func TestJSONSerializer(t *testing.T) {
	testSerializer(t, &JSONSerializer{})
}

func TestMessagePackSerializer(t *testing.T) {
	testSerializer(t, &MessagePackSerializer{})
}
