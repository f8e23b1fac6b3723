package gate

import (
	"log"
	"os"
	"sync"

	"github.com/relay-rt/relay/message"
	"github.com/relay-rt/relay/permission"
)

var logger = log.New(os.Stdout, "", log.LstdFlags)

// testConn implements message.Connection and records sent messages.
type testConn struct {
	mu   sync.Mutex
	user string
	sent []*message.Message
}

func newTestConn(user string) *testConn { return &testConn{user: user} }

func (c *testConn) SendMessage(msg *message.Message) {
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
}

func (c *testConn) UserID() string { return c.user }

func (c *testConn) AuthData() map[string]interface{} {
	return map[string]interface{}{"token": "xyzzy"}
}

func (c *testConn) messages() []*message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*message.Message{}, c.sent...)
}

type permRequest struct {
	userID   string
	msg      *message.Message
	response permission.ResponseFunc
	authData map[string]interface{}
	conn     message.Connection
	pctx     permission.Context
}

// recordingPermissioner records every check so tests can answer them
// manually, in any order.
type recordingPermissioner struct {
	mu   sync.Mutex
	reqs []permRequest
}

func (p *recordingPermissioner) CanPerformAction(userID string, msg *message.Message, response permission.ResponseFunc,
	authData map[string]interface{}, conn message.Connection, pctx permission.Context) {
	p.mu.Lock()
	p.reqs = append(p.reqs, permRequest{userID, msg, response, authData, conn, pctx})
	p.mu.Unlock()
}

func (p *recordingPermissioner) requests() []permRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]permRequest{}, p.reqs...)
}

// respond delivers the outcome for the i-th recorded check.
func (p *recordingPermissioner) respond(i int, err error, allowed bool) {
	r := p.requests()[i]
	r.response(r.conn, r.msg, r.pctx, err, allowed)
}

// recordingSink records forwarded messages.
type recordingSink struct {
	mu   sync.Mutex
	msgs []*message.Message
}

func (s *recordingSink) OnAuthenticatedMessage(conn message.Connection, msg *message.Message) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

func (s *recordingSink) forwarded() []*message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*message.Message{}, s.msgs...)
}

func newTestGate() (*Dispatcher, *Correlator, *recordingPermissioner, *recordingSink) {
	perm := &recordingPermissioner{}
	sink := &recordingSink{}
	c := NewCorrelator(sink, logger, nil)
	d := NewDispatcher(perm, c, logger, nil)
	return d, c, perm, sink
}

func subMsg(name string) *message.Message {
	return &message.Message{
		Topic:  message.TopicEvent,
		Action: message.ActionSubscribe,
		Name:   name,
	}
}

func bulkMsg(correlationID string, names ...string) *message.Message {
	return &message.Message{
		Topic:         message.TopicEvent,
		Action:        message.ActionSubscribe,
		Names:         names,
		CorrelationID: correlationID,
		IsBulk:        true,
	}
}
