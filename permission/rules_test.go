package permission

import (
	"testing"

	"github.com/relay-rt/relay/message"
)

func TestRulesFirstMatchWins(t *testing.T) {
	rules := NewRules([]Rule{
		{Topic: message.TopicEvent, Action: message.ActionPublish, NamePrefix: "internal/", Allow: false},
		{Topic: message.TopicEvent, Allow: true},
		{Topic: message.TopicRecord, Action: message.ActionWrite, Allow: false},
	}, false)

	cases := []struct {
		msg  *message.Message
		want bool
	}{
		{&message.Message{Topic: message.TopicEvent, Action: message.ActionPublish, Name: "internal/audit"}, false},
		{&message.Message{Topic: message.TopicEvent, Action: message.ActionPublish, Name: "news"}, true},
		{&message.Message{Topic: message.TopicEvent, Action: message.ActionSubscribe, Name: "news"}, true},
		{&message.Message{Topic: message.TopicRecord, Action: message.ActionWrite, Name: "users/1"}, false},
		// No matching rule gets the default outcome.
		{&message.Message{Topic: message.TopicRPC, Action: message.ActionInvoke, Name: "sum"}, false},
	}
	for _, tc := range cases {
		allowed, err := rules.Evaluate("alice", tc.msg, nil)
		if err != nil {
			t.Fatal(err)
		}
		if allowed != tc.want {
			t.Fatalf("%s %s %q: expected allowed=%v, got %v",
				tc.msg.Topic, tc.msg.Action, tc.msg.Name, tc.want, allowed)
		}
	}
}

func TestOpenAllowsEverything(t *testing.T) {
	allowed, err := Open{}.Evaluate("anyone", &message.Message{
		Topic:  message.TopicRecord,
		Action: message.ActionDelete,
		Name:   "users/1",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Fatal("open evaluator must allow everything")
	}
}
