package permission

import "github.com/relay-rt/relay/message"

// Open is an Evaluator that allows every action.  It is the default when no
// rules are configured.
type Open struct{}

// Evaluate allows any user to perform any action.
func (Open) Evaluate(userID string, msg *message.Message, authData map[string]interface{}) (bool, error) {
	return true, nil
}
