package gate

import (
	"github.com/relay-rt/relay/message"
	"github.com/relay-rt/relay/permission"
	"github.com/relay-rt/relay/stdlog"
)

// Dispatcher consumes batches of parsed inbound messages and issues one
// permission check per message, expanding bulk messages into one check per
// named item.  It never blocks and never handles responses itself; those
// arrive asynchronously at the Correlator.
type Dispatcher struct {
	perm       permission.Permissioner
	correlator *Correlator
	log        stdlog.StdLog
	metrics    *Metrics
}

// NewDispatcher creates a Dispatcher issuing checks to perm and directing
// responses to correlator.  The metrics should be the same instance given to
// the correlator; nil selects an unregistered default.
func NewDispatcher(perm permission.Permissioner, correlator *Correlator, logger stdlog.StdLog, metrics *Metrics) *Dispatcher {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Dispatcher{
		perm:       perm,
		correlator: correlator,
		log:        logger,
		metrics:    metrics,
	}
}

// Process dispatches a batch of messages received on one connection, in
// batch order.  Keepalive probes are skipped.  Bulk messages are expanded
// into one permission check per name, after which processing of the batch
// stops: a bulk message is expected to be the last message of its batch, and
// anything after it is dropped.  A bulk message naming nothing is itself
// dropped.  Process returns as soon as all checks are issued; responses
// complete in arbitrary order.
func (d *Dispatcher) Process(conn message.Connection, msgs []*message.Message) {
	for _, msg := range msgs {
		if msg.IsKeepAlive() {
			// Keepalives belong to the transport layer.
			continue
		}

		if msg.IsBulk {
			if len(msg.Names) == 0 {
				// An entry with zero expected responses could never be
				// removed, so install none.
				d.log.Printf("bulk message with no names dropped, correlation ID %q",
					msg.CorrelationID)
				continue
			}
			if d.correlator.beginBulk(msg.CorrelationID, len(msg.Names)) {
				d.log.Printf("correlation ID %q reused while still in flight, replacing stale entry",
					msg.CorrelationID)
			}
			d.metrics.BulkExpansions.Inc()
			// Responses may arrive while sub-requests are still being
			// issued, and a denial prunes msg.Names in place.  Iterate a
			// snapshot so every original name is checked exactly once.
			names := append([]string(nil), msg.Names...)
			for _, name := range names {
				d.perm.CanPerformAction(conn.UserID(), msg.ForName(name),
					d.correlator.HandleBulkResponse, conn.AuthData(), conn,
					permission.Context{Original: msg, Name: name})
			}
			// Bulk expansion terminates the batch.
			return
		}

		d.perm.CanPerformAction(conn.UserID(), msg,
			d.correlator.HandleSingleResponse, conn.AuthData(), conn,
			permission.Context{})
	}
}
