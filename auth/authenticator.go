/*
Package auth provides interfaces for implementing the connection
authentication logic that the relay websocket server uses, together with
default implementations for anonymous and shared-secret authentication.

Authentication happens once per connection, on the first frame, before any
message from the connection reaches the authorization gate.  The credentials
presented here are also handed to the permission service with every
subsequent permission check.
*/
package auth

import (
	"github.com/google/uuid"

	"github.com/relay-rt/relay/message"
)

// Authenticator is implemented by a type that authenticates a connecting
// client from its authentication request.
type Authenticator interface {
	// Authenticate takes the credentials from the client's authentication
	// request and returns the user identity to attach to the connection, or
	// an error if the credentials are rejected.
	Authenticate(authData map[string]interface{}) (userID string, err error)

	// AuthMethod returns a string describing the authentication method.
	AuthMethod() string
}

// AnonymousAuth admits every client, assigning a generated identity.
var AnonymousAuth Authenticator = &anonymousAuth{}

type anonymousAuth struct{}

func (a *anonymousAuth) Authenticate(authData map[string]interface{}) (string, error) {
	return "anonymous-" + uuid.NewString(), nil
}

func (a *anonymousAuth) AuthMethod() string { return "anonymous" }

// GrantedMessage constructs the wire response for a successful
// authentication handshake.
func GrantedMessage(userID string) *message.Message {
	return &message.Message{
		Topic:  message.TopicAuth,
		Action: message.ActionGranted,
		Name:   userID,
	}
}

// DeniedMessage constructs the wire response for a failed authentication
// handshake.
func DeniedMessage() *message.Message {
	return &message.Message{
		Topic:  message.TopicAuth,
		Action: message.ActionDenied,
	}
}
