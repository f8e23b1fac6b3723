package permission

import "github.com/relay-rt/relay/message"

const (
	defaultWorkers   = 4
	defaultQueueSize = 64
)

// Evaluator is the synchronous decision function wrapped by a Pool.
type Evaluator interface {
	// Evaluate returns whether userID may perform the action described by
	// msg.  An error indicates the evaluator itself failed, not a denial.
	Evaluate(userID string, msg *message.Message, authData map[string]interface{}) (bool, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(userID string, msg *message.Message, authData map[string]interface{}) (bool, error)

func (f EvaluatorFunc) Evaluate(userID string, msg *message.Message, authData map[string]interface{}) (bool, error) {
	return f(userID, msg, authData)
}

type request struct {
	userID   string
	msg      *message.Message
	response ResponseFunc
	authData map[string]interface{}
	conn     message.Connection
	pctx     Context
}

// Pool turns a synchronous Evaluator into an asynchronous Permissioner.
// Checks are queued on a channel and evaluated by a fixed set of worker
// goroutines, so responses complete in arbitrary order relative to dispatch.
type Pool struct {
	ev   Evaluator
	reqs chan request
}

// NewPool creates a Pool evaluating checks with ev on the given number of
// workers.  Values < 1 select the defaults.
func NewPool(ev Evaluator, workers int) *Pool {
	if workers < 1 {
		workers = defaultWorkers
	}
	p := &Pool{
		ev:   ev,
		reqs: make(chan request, defaultQueueSize),
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// CanPerformAction queues one check for evaluation.
func (p *Pool) CanPerformAction(userID string, msg *message.Message, response ResponseFunc,
	authData map[string]interface{}, conn message.Connection, pctx Context) {
	p.reqs <- request{
		userID:   userID,
		msg:      msg,
		response: response,
		authData: authData,
		conn:     conn,
		pctx:     pctx,
	}
}

// Close stops the workers.  No checks may be dispatched after Close.
func (p *Pool) Close() {
	close(p.reqs)
}

func (p *Pool) worker() {
	for req := range p.reqs {
		allowed, err := p.ev.Evaluate(req.userID, req.msg, req.authData)
		req.response(req.conn, req.msg, req.pctx, err, allowed)
	}
}
