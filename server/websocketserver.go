/*
Package server provides the websocket server that accepts client
connections, runs the authentication handshake, and feeds parsed message
batches to the authorization gate.
*/
package server

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relay-rt/relay/auth"
	"github.com/relay-rt/relay/gate"
	"github.com/relay-rt/relay/message"
	"github.com/relay-rt/relay/stdlog"
	"github.com/relay-rt/relay/transport"
	"github.com/relay-rt/relay/transport/serialize"
)

const (
	jsonWebsocketProtocol    = "relay.v1.json"
	msgpackWebsocketProtocol = "relay.v1.msgpack"

	// How long a new connection has to complete the authentication
	// handshake.
	authTimeout = 5 * time.Second
)

type protocol struct {
	payloadType int
	serializer  serialize.Serializer
}

// WebsocketServer handles websocket connections.
type WebsocketServer struct {
	// Upgrader specifies parameters for upgrading an HTTP connection to a
	// websocket connection.
	Upgrader *websocket.Upgrader

	// OutQueueSize is the maximum number of messages queued for writing to
	// one client before the router starts dropping.  Zero uses the
	// transport default.
	OutQueueSize int

	// OnDisconnect, if not nil, is called after a connection's message
	// handler exits.  Used to release downstream per-connection state such
	// as broker subscriptions.
	OnDisconnect func(message.Connection)

	dispatcher    *gate.Dispatcher
	authenticator auth.Authenticator
	protocols     map[string]protocol
	log           stdlog.StdLog
}

// NewWebsocketServer takes a dispatcher and an authenticator and creates a
// new websocket server.  To run the websocket server, call one of the
// server's ListenAndServe methods:
//
//	s := server.NewWebsocketServer(dispatcher, authenticator, logger)
//	closer, err := s.ListenAndServe(address)
//
// Or use the various ListenAndServe functions provided by net/http, since
// WebsocketServer implements the http.Handler interface.
func NewWebsocketServer(d *gate.Dispatcher, a auth.Authenticator, logger stdlog.StdLog) *WebsocketServer {
	s := &WebsocketServer{
		dispatcher:    d,
		authenticator: a,
		protocols:     map[string]protocol{},
		log:           logger,
	}
	s.addProtocol(jsonWebsocketProtocol, websocket.TextMessage,
		&serialize.JSONSerializer{})
	s.addProtocol(msgpackWebsocketProtocol, websocket.BinaryMessage,
		&serialize.MessagePackSerializer{})
	s.Upgrader = &websocket.Upgrader{
		Subprotocols: []string{jsonWebsocketProtocol, msgpackWebsocketProtocol},
	}
	return s
}

// ListenAndServe listens on the specified TCP address and starts a goroutine
// that accepts new client connections until the returned io.Closer is
// closed.
func (s *WebsocketServer) ListenAndServe(address string) (io.Closer, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		s.log.Print(err)
		return nil, err
	}

	server := &http.Server{
		Handler: s,
		Addr:    l.Addr().String(),
	}
	go server.Serve(l)
	return l, nil
}

// ListenAndServeTLS listens on the specified TCP address and starts a
// goroutine that accepts new TLS client connections until the returned
// io.Closer is closed.  If tls.Config does not already contain a
// certificate, then certFile and keyFile are used to load an X509
// certificate.
func (s *WebsocketServer) ListenAndServeTLS(address string, tlscfg *tls.Config, certFile, keyFile string) (io.Closer, error) {
	var hasCert bool
	if tlscfg == nil {
		tlscfg = &tls.Config{}
	} else if len(tlscfg.Certificates) > 0 || tlscfg.GetCertificate != nil {
		hasCert = true
	}

	if !hasCert || certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("error loading X509 key pair: %s", err)
		}
		tlscfg.Certificates = append(tlscfg.Certificates, cert)
	}

	l, err := tls.Listen("tcp", address, tlscfg)
	if err != nil {
		s.log.Print(err)
		return nil, err
	}

	server := &http.Server{
		Handler:   s,
		Addr:      l.Addr().String(),
		TLSConfig: tlscfg,
	}
	go server.Serve(l)
	return l, nil
}

// ServeHTTP handles HTTP connections, upgrading them to websocket.
func (s *WebsocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading to websocket connection:", err)
		return
	}

	// Negotiated subprotocol selects the serializer; default to JSON when
	// the client did not request one.
	proto, ok := s.protocols[wsConn.Subprotocol()]
	if !ok {
		proto = s.protocols[jsonWebsocketProtocol]
	}

	conn := transport.NewWebsocketConn(wsConn, proto.serializer,
		proto.payloadType, s.OutQueueSize, s.log)
	go s.handleWebsocket(conn)
}

// addProtocol registers a serializer for the given subprotocol and payload
// type.
func (s *WebsocketServer) addProtocol(proto string, payloadType int, serializer serialize.Serializer) error {
	if payloadType != websocket.TextMessage && payloadType != websocket.BinaryMessage {
		return fmt.Errorf("invalid payload type: %d", payloadType)
	}
	if _, ok := s.protocols[proto]; ok {
		return errors.New("protocol already registered: " + proto)
	}
	s.protocols[proto] = protocol{payloadType, serializer}
	return nil
}

// handleWebsocket runs the authentication handshake and then feeds message
// batches from the connection into the gate until the client goes away.
func (s *WebsocketServer) handleWebsocket(conn *transport.WebsocketConn) {
	if err := s.authenticate(conn); err != nil {
		s.log.Println("connection", conn.ID(), "failed authentication:", err)
		conn.SendMessage(auth.DeniedMessage())
		conn.Close()
		return
	}
	conn.SendMessage(auth.GrantedMessage(conn.UserID()))

	for batch := range conn.Recv() {
		// Keepalives are answered here; the gate skips them.
		for _, msg := range batch {
			if msg.Topic == message.TopicConnection && msg.Action == message.ActionPing {
				conn.SendMessage(&message.Message{
					Topic:  message.TopicConnection,
					Action: message.ActionPong,
				})
			}
		}
		s.dispatcher.Process(conn, batch)
	}

	if s.OnDisconnect != nil {
		s.OnDisconnect(conn)
	}
}

// authenticate performs the handshake on a new connection.  The very first
// frame must be a single auth request carrying the client's credentials.
func (s *WebsocketServer) authenticate(conn *transport.WebsocketConn) error {
	batch, err := recvTimeout(conn, authTimeout)
	if err != nil {
		return err
	}
	if len(batch) != 1 {
		return fmt.Errorf("expected a single auth request, got %d messages", len(batch))
	}
	req := batch[0]
	if req.Topic != message.TopicAuth || req.Action != message.ActionRequest {
		return fmt.Errorf("expected auth request, got %s %s", req.Topic, req.Action)
	}

	authData := map[string]interface{}{}
	if len(req.Data) != 0 {
		if err = json.Unmarshal(req.Data, &authData); err != nil {
			return fmt.Errorf("cannot parse credentials: %s", err)
		}
	}

	userID, err := s.authenticator.Authenticate(authData)
	if err != nil {
		return err
	}
	conn.SetIdentity(userID, authData)
	return nil
}

// recvTimeout receives one batch from the connection within the specified
// time.
func recvTimeout(conn *transport.WebsocketConn, t time.Duration) ([]*message.Message, error) {
	select {
	case batch, open := <-conn.Recv():
		if !open {
			return nil, errors.New("receive channel closed")
		}
		return batch, nil
	case <-time.After(t):
		return nil, errors.New("timeout waiting for message")
	}
}
