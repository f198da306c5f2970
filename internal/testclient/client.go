package testclient

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/tilecollapse/internal/server"
)

// TestClient represents a WebSocket session against a running server
type TestClient struct {
	Name    string
	conn    *websocket.Conn
	replies []*server.Reply
	mu      sync.Mutex
	writeMu sync.Mutex
	done    chan struct{}
}

// SessionParams selects the grid a session is opened on
type SessionParams struct {
	RuleSet string
	Width   int
	Height  int
	Seed    int64 // 0 leaves the server default
}

// SessionURL builds the ws:// URL for a session on the server at address
// (host:port).
func SessionURL(address string, p SessionParams) string {
	q := url.Values{}
	q.Set("ruleset", p.RuleSet)
	q.Set("width", strconv.Itoa(p.Width))
	q.Set("height", strconv.Itoa(p.Height))
	if p.Seed != 0 {
		q.Set("seed", strconv.FormatInt(p.Seed, 10))
	}
	u := url.URL{Scheme: "ws", Host: address, Path: "/ws", RawQuery: q.Encode()}
	return u.String()
}

// NewTestClient opens a session and waits for the initial state reply.
func NewTestClient(name, address string, p SessionParams) (*TestClient, error) {
	client, err := NewTestClientRaw(name, address, p)
	if err != nil {
		return nil, err
	}

	if _, ok := client.WaitForReply(server.CmdState, 2*time.Second); !ok {
		client.Close()
		return nil, fmt.Errorf("no initial state from server")
	}
	return client, nil
}

// NewTestClientRaw opens a session without waiting for anything.
// Use this for testing the handshake itself.
func NewTestClientRaw(name, address string, p SessionParams) (*TestClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(SessionURL(address, p), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	client := &TestClient{
		Name:    name,
		conn:    conn,
		replies: make([]*server.Reply, 0),
		done:    make(chan struct{}),
	}

	// Start reading replies in background
	go client.readReplies()

	return client, nil
}

// readReplies continuously reads replies from the server
func (c *TestClient) readReplies() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var reply server.Reply
		if err := json.Unmarshal(data, &reply); err != nil {
			continue
		}
		c.mu.Lock()
		c.replies = append(c.replies, &reply)
		c.mu.Unlock()
	}
}

// Send sends a command to the server
func (c *TestClient) Send(cmd *server.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return c.SendRaw(string(data))
}

// SendRaw sends text as-is, for exercising malformed input
func (c *TestClient) SendRaw(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// GetReplies returns all replies received so far
func (c *TestClient) GetReplies() []*server.Reply {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Return a copy
	result := make([]*server.Reply, len(c.replies))
	copy(result, c.replies)
	return result
}

// ClearReplies clears the reply buffer
func (c *TestClient) ClearReplies() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = make([]*server.Reply, 0)
}

// WaitForReply waits for a reply of the given type (with timeout) and
// returns the first one found.
func (c *TestClient) WaitForReply(typ string, timeout time.Duration) (*server.Reply, bool) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		for _, reply := range c.GetReplies() {
			if reply.Type == typ {
				return reply, true
			}
		}
		time.Sleep(20 * time.Millisecond)
	}

	return nil, false
}

// Do clears the buffer, sends cmd and waits for its reply.
func (c *TestClient) Do(cmd *server.Command, timeout time.Duration) (*server.Reply, error) {
	c.ClearReplies()
	if err := c.Send(cmd); err != nil {
		return nil, err
	}
	reply, ok := c.WaitForReply(cmd.Type, timeout)
	if !ok {
		return nil, fmt.Errorf("no %s reply within %v", cmd.Type, timeout)
	}
	return reply, nil
}

// LastReply returns the most recent reply, or nil
func (c *TestClient) LastReply() *server.Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		return nil
	}
	return c.replies[len(c.replies)-1]
}

// Close closes the client connection
func (c *TestClient) Close() error {
	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// PrintReplies prints all replies (for debugging)
func (c *TestClient) PrintReplies() {
	fmt.Printf("\n=== Replies for %s ===\n", c.Name)
	for i, r := range c.GetReplies() {
		status := "ok"
		if !r.OK {
			status = "error: " + r.Error
		}
		fmt.Printf("[%d] %s (%s) %d/%d solved\n", i, r.Type, status, r.Solved, r.Total)
	}
	fmt.Println("======================")
}
