package permission

import (
	"strings"

	"github.com/relay-rt/relay/message"
)

// Rule allows or denies one (topic, action, name-prefix) combination.  An
// empty Topic or Action matches any value; an empty NamePrefix matches any
// name.
type Rule struct {
	Topic      message.Topic
	Action     message.Action
	NamePrefix string
	Allow      bool
}

func (r *Rule) matches(msg *message.Message) bool {
	if r.Topic != "" && r.Topic != msg.Topic {
		return false
	}
	if r.Action != "" && r.Action != msg.Action {
		return false
	}
	if r.NamePrefix != "" && !strings.HasPrefix(msg.Name, r.NamePrefix) {
		return false
	}
	return true
}

// Rules is an Evaluator applying a static rule list.  The first matching
// rule wins; a message matching no rule gets the default outcome.
type Rules struct {
	rules        []Rule
	defaultAllow bool
}

// NewRules creates a Rules evaluator.
func NewRules(rules []Rule, defaultAllow bool) *Rules {
	return &Rules{rules: rules, defaultAllow: defaultAllow}
}

// Evaluate applies the rule list to msg.  Rules never fail, so the returned
// error is always nil.
func (r *Rules) Evaluate(userID string, msg *message.Message, authData map[string]interface{}) (bool, error) {
	for i := range r.rules {
		if r.rules[i].matches(msg) {
			return r.rules[i].Allow, nil
		}
	}
	return r.defaultAllow, nil
}
