/*
Package broker provides the event broker sitting downstream of the
authorization gate.  It receives authenticated messages from the gate,
maintains per-connection event subscriptions, and fans published events out
to subscribers.

Only messages that passed the gate reach the broker, so it performs no
permission checks of its own.
*/
package broker

import (
	"github.com/relay-rt/relay/message"
	"github.com/relay-rt/relay/stdlog"
)

type brokerReq struct {
	conn message.Connection
	msg  *message.Message
}

// Broker routes published events to subscribers.  It implements gate.Sink.
type Broker struct {
	// event name -> subscribed connections
	subscribers map[string]map[message.Connection]struct{}

	// connection -> subscribed event names
	connNames map[message.Connection]map[string]struct{}

	reqChan chan brokerReq

	log stdlog.StdLog
}

// New returns a new broker.
func New(logger stdlog.StdLog) *Broker {
	b := &Broker{
		subscribers: map[string]map[message.Connection]struct{}{},
		connNames:   map[message.Connection]map[string]struct{}{},

		// The request channel does not need to be more than size one, since
		// messages are processed at the same rate whether they sit in the
		// connections' receive channels or in reqChan.
		reqChan: make(chan brokerReq, 1),

		log: logger,
	}
	go b.reqHandler()
	return b
}

// OnAuthenticatedMessage submits an authorized message to the broker.
func (b *Broker) OnAuthenticatedMessage(conn message.Connection, msg *message.Message) {
	if conn == nil || msg == nil {
		panic("nil connection or message")
	}
	b.reqChan <- brokerReq{conn: conn, msg: msg}
}

// RemoveConnection removes all subscriptions of a disconnected client.
func (b *Broker) RemoveConnection(conn message.Connection) {
	if conn == nil {
		panic("nil connection")
	}
	b.reqChan <- brokerReq{conn: conn}
}

// Close stops the broker and waits for message processing to stop.
func (b *Broker) Close() {
	close(b.reqChan)
}

// reqHandler is the broker's main processing function, run by a single
// goroutine.  All functions that access broker data structures run on this
// routine.
func (b *Broker) reqHandler() {
	for req := range b.reqChan {
		if req.msg == nil {
			b.removeConnection(req.conn)
			continue
		}
		if req.msg.Topic != message.TopicEvent {
			b.log.Println("broker received unhandled topic:", req.msg.Topic)
			continue
		}
		switch req.msg.Action {
		case message.ActionSubscribe:
			b.subscribe(req.conn, req.msg)
		case message.ActionUnsubscribe:
			b.unsubscribe(req.conn, req.msg)
		case message.ActionPublish:
			b.publish(req.conn, req.msg)
		default:
			b.log.Println("broker received unhandled action:", req.msg.Action)
		}
	}
}

// eventNames returns the event names a subscribe or unsubscribe covers.  A
// bulk message that survived the gate carries only its allowed names.
func eventNames(msg *message.Message) []string {
	if len(msg.Names) != 0 {
		return msg.Names
	}
	if msg.Name != "" {
		return []string{msg.Name}
	}
	return nil
}

// subscribe subscribes the connection to the named events.  Subscribing
// again to an already-subscribed event is a no-op.
func (b *Broker) subscribe(conn message.Connection, msg *message.Message) {
	for _, name := range eventNames(msg) {
		subs, ok := b.subscribers[name]
		if !ok {
			subs = map[message.Connection]struct{}{}
			b.subscribers[name] = subs
		}
		subs[conn] = struct{}{}

		names, ok := b.connNames[conn]
		if !ok {
			names = map[string]struct{}{}
			b.connNames[conn] = names
		}
		names[name] = struct{}{}
	}
}

// unsubscribe removes the connection's subscriptions to the named events.
func (b *Broker) unsubscribe(conn message.Connection, msg *message.Message) {
	for _, name := range eventNames(msg) {
		b.dropSubscription(conn, name)
	}
}

// publish fans the event out to every subscriber of the event name, except
// the publisher itself.
func (b *Broker) publish(pub message.Connection, msg *message.Message) {
	for conn := range b.subscribers[msg.Name] {
		if conn == pub {
			continue
		}
		conn.SendMessage(&message.Message{
			Topic:  message.TopicEvent,
			Action: message.ActionPublish,
			Name:   msg.Name,
			Data:   msg.Data,
		})
	}
}

// removeConnection drops every subscription held by the connection.
func (b *Broker) removeConnection(conn message.Connection) {
	for name := range b.connNames[conn] {
		b.dropSubscription(conn, name)
	}
}

func (b *Broker) dropSubscription(conn message.Connection, name string) {
	subs, ok := b.subscribers[name]
	if !ok {
		return
	}
	delete(subs, conn)
	if len(subs) == 0 {
		delete(b.subscribers, name)
	}
	names := b.connNames[conn]
	delete(names, name)
	if len(names) == 0 {
		delete(b.connNames, conn)
	}
}
