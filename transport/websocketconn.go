/*
Package transport provides the websocket connection endpoint that carries
relay message batches between clients and the router.
*/
package transport

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/relay-rt/relay/message"
	"github.com/relay-rt/relay/stdlog"
)

const (
	defaultOutQueueSize = 160
	ctrlTimeout         = 5 * time.Second
)

// WebsocketConn connects the relay message stream to a websocket.  It
// implements message.Connection for the gate, and delivers inbound batches
// on the channel returned by Recv.
type WebsocketConn struct {
	id       string
	userID   string
	authData map[string]interface{}

	conn        *websocket.Conn
	serializer  batchSerializer
	payloadType int

	// Used to signal the websocket is closed.
	closed chan struct{}

	// Channels communicate with the router.
	rd chan []*message.Message
	wr chan *message.Message

	// Stop send handler without closing wr channel.
	stopSend chan struct{}

	log stdlog.StdLog
}

// batchSerializer is the batch codec a connection writes and reads frames with.
type batchSerializer interface {
	SerializeBatch([]*message.Message) ([]byte, error)
	DeserializeBatch([]byte) ([]*message.Message, error)
}

// NewWebsocketConn creates a connection endpoint from an accepted websocket.
//
// outQueueSize is the maximum number of messages that can be queued to be
// written to the websocket.  Once the queue has reached this limit, the
// router drops messages in order to not block.  A value < 1 uses the
// default size.
func NewWebsocketConn(conn *websocket.Conn, serializer batchSerializer, payloadType int, outQueueSize int, logger stdlog.StdLog) *WebsocketConn {
	if outQueueSize < 1 {
		outQueueSize = defaultOutQueueSize
	}
	w := &WebsocketConn{
		id:          uuid.NewString(),
		conn:        conn,
		serializer:  serializer,
		payloadType: payloadType,
		closed:      make(chan struct{}),
		stopSend:    make(chan struct{}),

		// Batches read from the websocket can be handled immediately, so the
		// read channel does not need to be more than size 1.
		rd: make(chan []*message.Message, 1),

		// The write channel is large enough to prevent blocking the router
		// while waiting for a slow websocket to send messages.
		wr: make(chan *message.Message, outQueueSize),

		log: logger,
	}
	// Sending to and receiving from the websocket is handled concurrently.
	go w.recvHandler()
	go w.sendHandler()

	return w
}

// ID returns the server-assigned connection ID.
func (w *WebsocketConn) ID() string { return w.id }

// UserID returns the authenticated identity of the client, or "" before the
// authentication handshake completes.
func (w *WebsocketConn) UserID() string { return w.userID }

// AuthData returns the credentials presented at authentication.
func (w *WebsocketConn) AuthData() map[string]interface{} { return w.authData }

// SetIdentity records the authenticated identity and credentials.  Called by
// the server once, after a successful authentication handshake and before
// any message reaches the gate.
func (w *WebsocketConn) SetIdentity(userID string, authData map[string]interface{}) {
	w.userID = userID
	w.authData = authData
}

// Recv returns the channel of message batches read from the peer.  The
// channel is closed when the websocket is.
func (w *WebsocketConn) Recv() <-chan []*message.Message { return w.rd }

// SendMessage queues a message for delivery to the client.  If the client
// has blocked the router by filling the outbound queue, the message is
// dropped.
func (w *WebsocketConn) SendMessage(msg *message.Message) {
	select {
	case w.wr <- msg:
	default:
		w.log.Println("client", w.id, "blocked router, dropped:", msg.Topic, msg.Action)
	}
}

// Close closes the websocket and the channel returned from Recv.
func (w *WebsocketConn) Close() {
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure,
		"goodbye")
	err := w.conn.WriteControl(websocket.CloseMessage, closeMsg,
		time.Now().Add(ctrlTimeout))
	if err != nil {
		w.log.Println("error sending close message:", err)
	}
	close(w.closed)
	if err = w.conn.Close(); err != nil {
		w.log.Println("error closing connection:", err)
	}
}

// sendHandler pulls messages from the write channel and pushes them to the
// websocket, one message per frame.
func (w *WebsocketConn) sendHandler() {
	for {
		select {
		case msg, open := <-w.wr:
			if !open {
				return
			}
			b, err := w.serializer.SerializeBatch([]*message.Message{msg})
			if err != nil {
				w.log.Println("error serializing message:", err)
				continue
			}
			if err = w.conn.WriteMessage(w.payloadType, b); err != nil {
				w.log.Println("error writing message:", err)
			}
		case <-w.stopSend:
			return
		}
	}
}

// recvHandler pulls frames from the websocket and pushes the decoded batches
// to the read channel.
func (w *WebsocketConn) recvHandler() {
	for {
		_, b, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.closed:
				// Connection was closed on this side.
			default:
				w.log.Println("error reading from client", w.id, ":", err)
				w.conn.Close()
			}
			break
		}

		batch, err := w.serializer.DeserializeBatch(b)
		if err != nil {
			w.log.Println("error deserializing batch from client", w.id, ":", err)
			continue
		}
		// It is OK for the router to block a client, since dispatch is quick
		// compared to the time to transfer a frame over the websocket, and a
		// blocked client does not block other clients.
		w.rd <- batch
	}
	// Close read channel, causing the server to drop the connection if it
	// has not already.
	close(w.rd)
	// Stop sendHandler without closing the write channel.
	close(w.stopSend)
}
