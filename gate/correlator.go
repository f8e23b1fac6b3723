package gate

import (
	"sync"

	"github.com/relay-rt/relay/message"
	"github.com/relay-rt/relay/permission"
	"github.com/relay-rt/relay/stdlog"
)

// bulkProgress tracks one in-flight bulk message.  total is the number of
// sub-requests issued at dispatch; completed counts the sub-responses
// processed so far, excluding the one that triggers finalization.
type bulkProgress struct {
	total     int
	completed int
}

// Correlator owns the bulk-completion table and handles the asynchronous
// permission-check responses.  Responses may arrive in any order, from any
// goroutine; per-correlation-ID updates are serialized by the table lock.
//
// A permission check whose response never arrives leaves its table entry
// resident forever.  The gate deliberately applies no timeout; bounding the
// wait is the permission service's concern.
type Correlator struct {
	sink    Sink
	log     stdlog.StdLog
	metrics *Metrics

	mu    sync.Mutex
	bulks map[string]*bulkProgress
}

// NewCorrelator creates a Correlator forwarding authorized messages to sink.
// A nil metrics selects an unregistered default.
func NewCorrelator(sink Sink, logger stdlog.StdLog, metrics *Metrics) *Correlator {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Correlator{
		sink:    sink,
		log:     logger,
		metrics: metrics,
		bulks:   map[string]*bulkProgress{},
	}
}

// beginBulk installs the completion entry for a bulk message about to be
// expanded into total sub-requests.  If the correlation ID is already in
// flight the stale entry is overwritten, latest wins, and true is returned
// so the caller can report the protocol anomaly.
func (c *Correlator) beginBulk(correlationID string, total int) bool {
	c.mu.Lock()
	_, collision := c.bulks[correlationID]
	c.bulks[correlationID] = &bulkProgress{total: total}
	c.mu.Unlock()

	if collision {
		c.metrics.Collisions.Inc()
	} else {
		c.metrics.BulkInFlight.Inc()
	}
	return collision
}

// HandleSingleResponse handles the permission-check response for an ordinary
// message.  An allowed message is forwarded downstream unmodified; anything
// else is translated into exactly one wire response and goes no further.
func (c *Correlator) HandleSingleResponse(conn message.Connection, msg *message.Message, pctx permission.Context, err error, allowed bool) {
	if err != nil || !allowed {
		c.reject(conn, msg, err)
		return
	}
	c.metrics.Checks.WithLabelValues(string(msg.Topic), outcomeAllowed).Inc()
	c.sink.OnAuthenticatedMessage(conn, msg)
}

// HandleBulkResponse handles the permission-check response for one item of a
// bulk message.  Denied or errored items are pruned from the original
// message's name list and answered individually; whichever response arrives
// last removes the completion entry and, if any names survived, forwards the
// pruned original downstream exactly once.
//
// The completion test is count-based, not identity-based: the entry is
// finalized by the Nth response regardless of which item it belongs to.
func (c *Correlator) HandleBulkResponse(conn message.Connection, msg *message.Message, pctx permission.Context, err error, allowed bool) {
	rejected := err != nil || !allowed
	if rejected {
		c.reject(conn, msg, err)
	} else {
		c.metrics.Checks.WithLabelValues(string(msg.Topic), outcomeAllowed).Inc()
	}

	c.mu.Lock()
	if rejected {
		pctx.Original.Names = removeName(pctx.Original.Names, pctx.Name)
	}
	// The entry was created at dispatch.  A missing entry means a response
	// for a check this gate never issued, which is a defect upstream.
	progress := c.bulks[msg.CorrelationID]
	if progress.completed+1 != progress.total {
		progress.completed++
		c.mu.Unlock()
		return
	}
	delete(c.bulks, msg.CorrelationID)
	forward := len(pctx.Original.Names) > 0
	c.mu.Unlock()

	c.metrics.BulkInFlight.Dec()
	if forward {
		c.sink.OnAuthenticatedMessage(conn, pctx.Original)
	}
}

// reject translates a failed permission check into exactly one wire
// response.  A permission-service failure yields a permission-error message
// and a warning; a plain "no" yields a permission-denied message.  The
// service error takes precedence even when allowed is true.
func (c *Correlator) reject(conn message.Connection, msg *message.Message, err error) {
	action := message.ActionPermissionDenied
	outcome := outcomeDenied
	if err != nil {
		action = message.ActionPermissionError
		outcome = outcomeError
		c.log.Printf("permission check failed for user %q on %s %s %q: %v",
			conn.UserID(), msg.Topic, msg.Action, msg.Name, err)
	}
	c.metrics.Checks.WithLabelValues(string(msg.Topic), outcome).Inc()

	conn.SendMessage(&message.Message{
		Topic:          msg.Topic,
		Action:         action,
		OriginalAction: msg.Action,
		Name:           msg.Name,
		CorrelationID:  msg.CorrelationID,
	})
}

// removeName returns names with the first occurrence of name removed.
// Pruning order is response-arrival order, so the surviving list keeps
// client order but is trimmed as denials land.
func removeName(names []string, name string) []string {
	for i := range names {
		if names[i] == name {
			return append(names[:i], names[i+1:]...)
		}
	}
	return names
}
