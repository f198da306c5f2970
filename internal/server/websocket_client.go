package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// WebSocketClient carries JSON commands and replies over a WebSocket connection.
type WebSocketClient struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

// NewWebSocketClient wraps conn. A positive maxMessageSize bounds incoming
// messages; larger ones close the connection.
func NewWebSocketClient(conn *websocket.Conn, maxMessageSize int64) *WebSocketClient {
	if maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}
	return &WebSocketClient{conn: conn}
}

// ReadCommand reads the next non-empty message and decodes it as a Command.
// Decoding failures wrap ErrBadCommand; anything else is a connection error.
func (c *WebSocketClient) ReadCommand() (*Command, error) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(message)) == 0 {
			continue
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadCommand, err)
		}
		return &cmd, nil
	}
}

// Send writes a reply as a single text message.
func (c *WebSocketClient) Send(reply *Reply) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal close frame and closes the connection.
func (c *WebSocketClient) Close() error {
	c.mu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}

// RemoteAddr returns the remote address as a string.
func (c *WebSocketClient) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
