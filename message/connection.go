package message

// Connection is the interface implemented by the transport endpoint that
// originated a message.  It identifies the client to the permission service
// and is the destination for permission-error and permission-denied
// responses.
type Connection interface {
	// SendMessage delivers a message to the connected client.  Transports
	// queue or drop rather than block, so SendMessage never blocks the
	// router.
	SendMessage(*Message)

	// UserID returns the authenticated identity of the client.
	UserID() string

	// AuthData returns the credentials presented by the client at
	// authentication, for permissioners that evaluate them per action.
	AuthData() map[string]interface{}
}
