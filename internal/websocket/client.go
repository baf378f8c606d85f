package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 5 * time.Minute
)

// Client wraps one connection behind a write mutex. gorilla/websocket
// allows at most one concurrent writer per connection, and a client's
// frames come from two goroutines: the per-connection reader answering
// actions and the hub broadcasting engine events. All writes must go
// through here.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// WriteTyped sends a strongly-typed payload over the WebSocket.
func (c *Client) WriteTyped(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (c *Client) WriteError(errMsg string) error {
	return c.WriteTyped(ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadMessage reads the next raw message. It refreshes the read deadline,
// so an idle connection is eventually reaped.
func (c *Client) ReadMessage() ([]byte, error) {
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, raw, err := c.conn.ReadMessage()
	return raw, err
}

// RemoteAddr reports the peer address for logging.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
