package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsTestServer upgrades incoming connections and hands them to handler.
func wsTestServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientConnectAndReceive(t *testing.T) {
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"trnm":"PING"}`))
		// Keep the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.URL = wsURL(srv)

	c := NewClient(cfg, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	if !c.IsConnected() {
		t.Error("IsConnected = false after Connect")
	}

	select {
	case msg := <-c.Messages():
		if string(msg.Data) != `{"trnm":"PING"}` {
			t.Errorf("message = %s, want ping frame", msg.Data)
		}
		if msg.ReceivedAt.IsZero() {
			t.Error("ReceivedAt not set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestClientSend(t *testing.T) {
	received := make(chan []byte, 1)
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- data
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.URL = wsURL(srv)

	c := NewClient(cfg, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	if err := c.Send([]byte(`{"trnm":"REG"}`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != `{"trnm":"REG"}` {
			t.Errorf("server received %s, want REG frame", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server receive")
	}
}

func TestClientSendNotConnected(t *testing.T) {
	c := NewClient(DefaultClientConfig(), nil)
	if err := c.Send([]byte("x")); err != ErrNotConnected {
		t.Errorf("Send = %v, want ErrNotConnected", err)
	}
}

func TestClientCloseIdempotent(t *testing.T) {
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.URL = wsURL(srv)

	c := NewClient(cfg, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected = true after Close")
	}
}

func TestClientConnectAfterClose(t *testing.T) {
	c := NewClient(DefaultClientConfig(), nil)
	c.(*client).closed = true
	if err := c.Connect(context.Background()); err != ErrAlreadyClosed {
		t.Errorf("Connect = %v, want ErrAlreadyClosed", err)
	}
}

func TestClientStaleConnection(t *testing.T) {
	// The server never reads, so keepalive pings go unanswered and the
	// connection goes stale.
	srv := wsTestServer(t, func(conn *websocket.Conn) {
		time.Sleep(5 * time.Second)
	})
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.URL = wsURL(srv)
	cfg.PingTimeout = 200 * time.Millisecond

	c := NewClient(cfg, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	select {
	case err := <-c.Errors():
		if err != ErrStaleConnection {
			t.Errorf("error = %v, want ErrStaleConnection", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stale connection error")
	}
}
