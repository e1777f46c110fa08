package ws

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
)

// Close codes with a fixed meaning on the wire. CloseNormal and
// CloseForbidden are terminal; everything else is treated by callers as an
// unexpected close.
const (
	CloseNormal    = websocket.CloseNormalClosure
	CloseForbidden = 4001
)

// Conn wraps one live transport connection. Inbound text frames are pumped
// into R; R is closed when the transport dies for any reason.
type Conn struct {
	conn *websocket.Conn
	R    chan []byte

	writeMu sync.Mutex

	mu        sync.Mutex
	closeCode int
	closed    bool
}

func Dial(ctx context.Context, target string) (*Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		conn:      conn,
		R:         make(chan []byte, 128),
		closeCode: websocket.CloseAbnormalClosure,
	}

	go c.runReader()
	return c, nil
}

func (c *Conn) runReader() {
	defer close(c.R)

	for {
		t, msg, err := c.conn.ReadMessage()
		if err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				c.mu.Lock()
				if !c.closed {
					c.closeCode = closeErr.Code
				}
				c.mu.Unlock()
			}
			return
		}

		if t == websocket.TextMessage {
			c.R <- msg
		}
	}
}

func (c *Conn) Write(msg any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	switch t := msg.(type) {
	case string:
		return c.conn.WriteMessage(websocket.TextMessage, []byte(t))
	case []byte:
		return c.conn.WriteMessage(websocket.TextMessage, t)
	default:
		return c.conn.WriteJSON(t)
	}
}

// Close sends a close frame with the given code and tears the transport down.
// The code is also recorded as this side's close code so a locally initiated
// close is never mistaken for a server-driven one.
func (c *Conn) Close(code int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.closeCode = code
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteMessage(
		websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
	c.writeMu.Unlock()

	return c.conn.Close()
}

// CloseCode reports why the connection ended. Meaningful once R is closed.
func (c *Conn) CloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}
