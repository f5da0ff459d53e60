package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// echoServer upgrades every request and echoes text messages back until
// the client goes away or a message "bye" arrives.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == "bye" {
				return
			}
			conn.WriteMessage(kind, data)
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestTransportDialSendRead(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	tr := NewTransport(wsURL(srv), TransportOptions{})
	msg := tr.Dial(context.Background(), 1)()
	if _, ok := msg.(DialedMsg); !ok {
		t.Fatalf("Dial() = %#v, want DialedMsg", msg)
	}
	defer tr.Close(1)

	if err := tr.Send(1, []byte(`{"type":"hello"}`)); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	got := tr.Read(1)()
	mm, ok := got.(MessageMsg)
	if !ok {
		t.Fatalf("Read() = %#v, want MessageMsg", got)
	}
	if mm.Gen != 1 || string(mm.Data) != `{"type":"hello"}` {
		t.Errorf("Read() = gen %d %q", mm.Gen, mm.Data)
	}
}

func TestTransportReportsDrop(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	tr := NewTransport(wsURL(srv), TransportOptions{})
	tr.Dial(context.Background(), 1)()
	tr.Send(1, []byte("bye"))

	done := make(chan any, 1)
	go func() { done <- tr.Read(1)() }()

	select {
	case msg := <-done:
		f, ok := msg.(FailedMsg)
		if !ok {
			t.Fatalf("Read() = %#v, want FailedMsg", msg)
		}
		if !errors.Is(f.Err, ErrTransport) {
			t.Errorf("err = %v, want ErrTransport", f.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Read() did not notice the server closing")
	}

	if err := tr.Send(1, []byte("x")); !errors.Is(err, ErrTransport) {
		t.Errorf("Send() after drop = %v, want ErrTransport", err)
	}
}

func TestTransportDialFailure(t *testing.T) {
	srv := echoServer(t)
	url := wsURL(srv)
	srv.Close()

	tr := NewTransport(url, TransportOptions{})
	msg := tr.Dial(context.Background(), 7)()
	f, ok := msg.(FailedMsg)
	if !ok {
		t.Fatalf("Dial() = %#v, want FailedMsg", msg)
	}
	if f.Gen != 7 || !errors.Is(f.Err, ErrTransport) {
		t.Errorf("FailedMsg = %+v", f)
	}
}

func TestTransportIgnoresStaleGeneration(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	tr := NewTransport(wsURL(srv), TransportOptions{})
	tr.Dial(context.Background(), 1)()
	tr.Dial(context.Background(), 2)()
	defer tr.Close(2)

	if err := tr.Send(1, []byte("x")); err == nil {
		t.Error("Send() on superseded generation succeeded")
	}
	if _, ok := tr.Read(1)().(FailedMsg); !ok {
		t.Error("Read() on superseded generation should fail")
	}
	// Closing a stale generation must not touch the live connection.
	tr.Close(1)
	if err := tr.Send(2, []byte("still here")); err != nil {
		t.Errorf("Send() on live generation error: %v", err)
	}
}
