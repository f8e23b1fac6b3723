/*
Package message defines the message types, topics, and actions that make up
the relay wire protocol, along with the Connection interface implemented by
transports.
*/
package message

// Topic is the coarse category of a message.
type Topic string

// Topics understood by the router.
const (
	TopicConnection Topic = "connection"
	TopicAuth       Topic = "auth"
	TopicEvent      Topic = "event"
	TopicRecord     Topic = "record"
	TopicRPC        Topic = "rpc"
	TopicPresence   Topic = "presence"
)

// Action is a specific verb within a topic.
type Action string

// Actions understood by the router.  Not every action is meaningful for
// every topic; the bulk table below defines which (topic, action) pairs may
// carry multiple names.
const (
	// Connection control.
	ActionPing Action = "ping"
	ActionPong Action = "pong"

	// Authentication handshake.
	ActionRequest Action = "request"
	ActionGranted Action = "granted"
	ActionDenied  Action = "denied"

	// Event, record and presence operations.
	ActionSubscribe   Action = "subscribe"
	ActionUnsubscribe Action = "unsubscribe"
	ActionPublish     Action = "publish"
	ActionListen      Action = "listen"
	ActionUnlisten    Action = "unlisten"
	ActionRead        Action = "read"
	ActionWrite       Action = "write"
	ActionDelete      Action = "delete"
	ActionQuery       Action = "query"

	// RPC operations.
	ActionProvide   Action = "provide"
	ActionUnprovide Action = "unprovide"
	ActionInvoke    Action = "invoke"

	// Per-item variants carried by messages derived from a bulk expansion.
	ActionSubscribeBulk   Action = "subscribe-bulk"
	ActionUnsubscribeBulk Action = "unsubscribe-bulk"
	ActionListenBulk      Action = "listen-bulk"

	// Responses generated by the authorization gate.
	ActionPermissionError  Action = "permission-error"
	ActionPermissionDenied Action = "permission-denied"
)

// bulkActions maps a (topic, action) pair to the bulk-specific action
// variant carried by each message derived from a bulk expansion.
var bulkActions = map[Topic]map[Action]Action{
	TopicEvent: {
		ActionSubscribe:   ActionSubscribeBulk,
		ActionUnsubscribe: ActionUnsubscribeBulk,
		ActionListen:      ActionListenBulk,
	},
	TopicRecord: {
		ActionSubscribe:   ActionSubscribeBulk,
		ActionUnsubscribe: ActionUnsubscribeBulk,
		ActionListen:      ActionListenBulk,
	},
	TopicPresence: {
		ActionSubscribe:   ActionSubscribeBulk,
		ActionUnsubscribe: ActionUnsubscribeBulk,
	},
}

// BulkAction returns the bulk-specific variant of action for the topic.  If
// no variant is registered the action itself is returned, so that derived
// messages remain meaningful for permissioners that do not distinguish the
// two.
func BulkAction(topic Topic, action Action) Action {
	if variant, ok := bulkActions[topic][action]; ok {
		return variant
	}
	return action
}

// Message is the unit of work passed from the transport into the router.
// Messages are treated as immutable by the dispatcher; bulk expansion
// derives new messages rather than rewriting the original.
type Message struct {
	Topic  Topic  `json:"topic" codec:"topic"`
	Action Action `json:"action" codec:"action"`

	// Name is the target resource, when the message has one.
	Name string `json:"name,omitempty" codec:"name"`

	// Names lists the target resources of a bulk message, in client order.
	Names []string `json:"names,omitempty" codec:"names"`

	// CorrelationID groups the sub-requests of one bulk message.
	CorrelationID string `json:"correlationId,omitempty" codec:"correlationId"`

	// IsBulk marks a message that covers every entry of Names.
	IsBulk bool `json:"isBulk,omitempty" codec:"isBulk"`

	// OriginalAction records the rejected action on generated
	// permission-error and permission-denied messages.
	OriginalAction Action `json:"originalAction,omitempty" codec:"originalAction"`

	// Data is the message payload.  It is opaque to the authorization gate.
	Data []byte `json:"data,omitempty" codec:"data"`
}

// IsKeepAlive reports whether the message is a connection keepalive probe.
// Keepalives are owned by the transport layer and never permission-checked.
func (m *Message) IsKeepAlive() bool {
	return m.Topic == TopicConnection && (m.Action == ActionPing || m.Action == ActionPong)
}

// ForName derives the per-item message used to permission-check one entry of
// a bulk message.  The derived message shares the topic and correlation ID,
// carries the bulk-specific action variant, and names only the given item.
// The receiver is not modified.
func (m *Message) ForName(name string) *Message {
	return &Message{
		Topic:         m.Topic,
		Action:        BulkAction(m.Topic, m.Action),
		Name:          name,
		CorrelationID: m.CorrelationID,
		Data:          m.Data,
	}
}
