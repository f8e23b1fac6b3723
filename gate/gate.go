/*
Package gate implements the authorization and fan-out gate of the relay
router.  Every inbound message from every connection is permission-checked
before it may reach the rest of the system.

The gate has two cooperating components.  The Dispatcher consumes a batch of
parsed messages for one connection and issues one permission check per
message, expanding bulk messages into one check per named item.  The
Correlator owns the bulk-completion table and receives the asynchronous
responses, re-joining the sub-responses of a bulk message into a single
outcome, translating denials and permission-service failures into wire
responses, and forwarding authorized messages to the downstream sink.
*/
package gate

import "github.com/relay-rt/relay/message"

// Sink receives messages that passed authorization.  It is injected at
// construction and invoked at most once per authorized logical message,
// single or bulk.
type Sink interface {
	OnAuthenticatedMessage(conn message.Connection, msg *message.Message)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(conn message.Connection, msg *message.Message)

func (f SinkFunc) OnAuthenticatedMessage(conn message.Connection, msg *message.Message) {
	f(conn, msg)
}
