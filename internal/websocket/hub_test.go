package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// TestBroadcastInterleavesWithReplies drives hub broadcasts and
// per-connection replies from separate goroutines against one live
// connection. Every frame must arrive intact: with gorilla/websocket
// that only holds if all writes are serialized through the client.
func TestBroadcastInterleavesWithReplies(t *testing.T) {
	const (
		replies    = 50
		broadcasts = 50
	)

	hub := NewHub(zerolog.Nop())
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		client := hub.Register(conn)
		defer client.Close()
		defer hub.Unregister(client)

		for {
			if _, err := client.ReadMessage(); err != nil {
				return
			}
			if err := client.WriteTyped(PongResponse{Event: EventPong}); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < replies; i++ {
			if err := conn.WriteJSON(RequestEnvelope{Action: ActionPing}); err != nil {
				t.Errorf("write ping: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < broadcasts; i++ {
			hub.TimeExpired("math-101")
		}
	}()

	pongs, expiries := 0, 0
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for pongs+expiries < replies+broadcasts {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read after %d pongs, %d expiries: %v", pongs, expiries, err)
		}
		var env struct {
			Event Event `json:"event"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("corrupt frame %q: %v", raw, err)
		}
		switch env.Event {
		case EventPong:
			pongs++
		case EventTimeExpired:
			expiries++
		default:
			t.Fatalf("unexpected event %q", env.Event)
		}
	}
	wg.Wait()

	if pongs != replies || expiries != broadcasts {
		t.Fatalf("got %d pongs, %d expiries; want %d, %d", pongs, expiries, replies, broadcasts)
	}
}

// TestBroadcastDropsClosedClient verifies a client whose connection has
// gone away is removed from the broadcast set instead of wedging the hub.
func TestBroadcastDropsClosedClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	upgrader := websocket.Upgrader{}

	registered := make(chan *Client, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		registered <- hub.Register(conn)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	client := <-registered
	client.Close()
	conn.Close()

	hub.TimeExpired("math-101")

	hub.mu.Lock()
	n := len(hub.clients)
	hub.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected closed client to be dropped, %d still registered", n)
	}
}
