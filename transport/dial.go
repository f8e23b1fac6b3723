package transport

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/relay-rt/relay/stdlog"
	"github.com/relay-rt/relay/transport/serialize"
)

// Websocket subprotocol identifiers for the supported serializations.
const (
	jsonWebsocketProtocol    = "relay.v1.json"
	msgpackWebsocketProtocol = "relay.v1.msgpack"
)

// ConnectWebsocketConn creates a new WebsocketConn with the specified
// serialization, connected to the websocket server at the specified URL.
// It is the client-side counterpart of the server's connection handling,
// used by local clients and tests.
func ConnectWebsocketConn(url string, serialization serialize.Serialization, tlsConfig *tls.Config, logger stdlog.StdLog) (*WebsocketConn, error) {
	var (
		protocol    string
		payloadType int
		serializer  serialize.Serializer
	)
	switch serialization {
	case serialize.JSON:
		protocol = jsonWebsocketProtocol
		payloadType = websocket.TextMessage
		serializer = &serialize.JSONSerializer{}
	case serialize.MSGPACK:
		protocol = msgpackWebsocketProtocol
		payloadType = websocket.BinaryMessage
		serializer = &serialize.MessagePackSerializer{}
	default:
		return nil, fmt.Errorf("unsupported serialization: %v", serialization)
	}

	dialer := websocket.Dialer{
		Subprotocols:    []string{protocol},
		TLSClientConfig: tlsConfig,
		Proxy:           http.ProxyFromEnvironment,
	}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return NewWebsocketConn(conn, serializer, payloadType, 0, logger), nil
}
