/*
Package permission defines the asynchronous permission-service contract
consumed by the authorization gate, and provides permissioner
implementations backed by synchronous evaluators run on a worker pool.
*/
package permission

import "github.com/relay-rt/relay/message"

// Context carries per-request correlation data attached by the dispatcher
// when a permission check is issued.  For checks derived from a bulk
// message, Original is the unexpanded message and Name the item being
// checked.  Checks for ordinary messages carry the zero Context.
type Context struct {
	Original *message.Message
	Name     string
}

// ResponseFunc is invoked exactly once per permission check, asynchronously
// and in no particular order relative to other in-flight checks.  A non-nil
// err means the permission service itself failed and takes precedence over
// allowed.
type ResponseFunc func(conn message.Connection, msg *message.Message, pctx Context, err error, allowed bool)

// Permissioner is the interface implemented by a permission service that
// decides whether a user may perform an action on a resource.
type Permissioner interface {
	// CanPerformAction dispatches one permission check and returns without
	// waiting for the decision.  The response callback is invoked from
	// another goroutine with the outcome.
	CanPerformAction(userID string, msg *message.Message, response ResponseFunc,
		authData map[string]interface{}, conn message.Connection, pctx Context)
}
