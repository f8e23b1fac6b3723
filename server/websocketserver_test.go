package server

import (
	"encoding/json"
	"log"
	"os"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"

	"github.com/relay-rt/relay/auth"
	"github.com/relay-rt/relay/broker"
	"github.com/relay-rt/relay/gate"
	"github.com/relay-rt/relay/message"
	"github.com/relay-rt/relay/permission"
	"github.com/relay-rt/relay/transport"
	"github.com/relay-rt/relay/transport/serialize"
)

const wsAddr = "127.0.0.1:8066"

var logger = log.New(os.Stdout, "", log.LstdFlags)

type testRouter struct {
	pool *permission.Pool
	brk  *broker.Broker
	wss  *WebsocketServer
}

func newTestRouter(authenticator auth.Authenticator) *testRouter {
	pool := permission.NewPool(permission.Open{}, 2)
	brk := broker.New(logger)
	correlator := gate.NewCorrelator(brk, logger, nil)
	dispatcher := gate.NewDispatcher(pool, correlator, logger, nil)
	wss := NewWebsocketServer(dispatcher, authenticator, logger)
	wss.OnDisconnect = brk.RemoveConnection
	return &testRouter{pool: pool, brk: brk, wss: wss}
}

func (r *testRouter) close() {
	r.pool.Close()
	r.brk.Close()
}

func connectClient(t *testing.T, serialization serialize.Serialization, creds map[string]interface{}) *transport.WebsocketConn {
	t.Helper()
	client, err := transport.ConnectWebsocketConn("ws://"+wsAddr+"/", serialization, nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(creds)
	if err != nil {
		t.Fatal(err)
	}
	client.SendMessage(&message.Message{
		Topic:  message.TopicAuth,
		Action: message.ActionRequest,
		Data:   data,
	})
	return client
}

func recvOne(t *testing.T, client *transport.WebsocketConn) *message.Message {
	t.Helper()
	select {
	case batch, open := <-client.Recv():
		if !open {
			t.Fatal("recv chan closed")
		}
		if len(batch) != 1 {
			t.Fatal("expected 1 message, got", len(batch))
		}
		return batch[0]
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestWebsocketPubSub(t *testing.T) {
	defer leaktest.Check(t)()

	r := newTestRouter(auth.AnonymousAuth)
	defer r.close()
	closer, err := r.wss.ListenAndServe(wsAddr)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	sub := connectClient(t, serialize.JSON, nil)
	defer sub.Close()
	if msg := recvOne(t, sub); msg.Action != message.ActionGranted {
		t.Fatal("expected auth granted, got", msg.Action)
	}

	pub := connectClient(t, serialize.MSGPACK, nil)
	defer pub.Close()
	if msg := recvOne(t, pub); msg.Action != message.ActionGranted {
		t.Fatal("expected auth granted, got", msg.Action)
	}

	sub.SendMessage(&message.Message{
		Topic:  message.TopicEvent,
		Action: message.ActionSubscribe,
		Name:   "news",
	})
	// Subscription passes through the async gate; give it a moment before
	// publishing.
	time.Sleep(100 * time.Millisecond)

	pub.SendMessage(&message.Message{
		Topic:  message.TopicEvent,
		Action: message.ActionPublish,
		Name:   "news",
		Data:   []byte(`"hello"`),
	})

	evt := recvOne(t, sub)
	if evt.Topic != message.TopicEvent || evt.Name != "news" {
		t.Fatalf("expected news event, got %s %s", evt.Topic, evt.Name)
	}
	if string(evt.Data) != `"hello"` {
		t.Fatal("event payload not delivered, got", string(evt.Data))
	}
}

func TestWebsocketKeepAlive(t *testing.T) {
	defer leaktest.Check(t)()

	r := newTestRouter(auth.AnonymousAuth)
	defer r.close()
	closer, err := r.wss.ListenAndServe(wsAddr)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	client := connectClient(t, serialize.JSON, nil)
	defer client.Close()
	if msg := recvOne(t, client); msg.Action != message.ActionGranted {
		t.Fatal("expected auth granted, got", msg.Action)
	}

	client.SendMessage(&message.Message{
		Topic:  message.TopicConnection,
		Action: message.ActionPing,
	})
	if msg := recvOne(t, client); msg.Action != message.ActionPong {
		t.Fatal("expected pong, got", msg.Action)
	}
}

func TestWebsocketAuthDenied(t *testing.T) {
	defer leaktest.Check(t)()

	const salt = "s1"
	users := map[string]auth.UserKey{
		"alice": {
			Key:        auth.DeriveKey("secret", salt, 1000, 32),
			Salt:       salt,
			Iterations: 1000,
			KeyLen:     32,
		},
	}
	r := newTestRouter(auth.NewSecretAuth(users))
	defer r.close()
	closer, err := r.wss.ListenAndServe(wsAddr)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	client := connectClient(t, serialize.JSON, map[string]interface{}{
		"username": "alice",
		"password": "wrong",
	})
	defer client.Close()
	if msg := recvOne(t, client); msg.Action != message.ActionDenied {
		t.Fatal("expected auth denied, got", msg.Action)
	}
}
