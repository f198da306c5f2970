package server

import (
	"errors"

	"github.com/lawnchairsociety/tilecollapse/internal/wfc"
)

// ErrBadCommand wraps messages that arrived intact but could not be decoded.
// The session answers them with an error reply and keeps reading.
var ErrBadCommand = errors.New("server: malformed command")

// Client abstracts the connection an interactive session talks over.
type Client interface {
	// ReadCommand blocks until the next command arrives.
	ReadCommand() (*Command, error)

	// Send writes one reply to the client.
	Send(reply *Reply) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the client's address for logging.
	RemoteAddr() string
}

// Command types understood by a session.
const (
	CmdCollapse     = "collapse"
	CmdFullCollapse = "full_collapse"
	CmdSurround     = "surround"
	CmdReset        = "reset"
	CmdState        = "state"
	CmdSave         = "save"
)

// Command is one client request within a session.
type Command struct {
	Type string `json:"type"`

	// Cell addressed by collapse
	X int `json:"x"`
	Y int `json:"y"`

	// Tile for collapse (optional) and surround (required)
	ID *int `json:"id,omitempty"`

	// First cell for full_collapse
	Start *wfc.Position `json:"start,omitempty"`

	// Name for save
	Name string `json:"name,omitempty"`
}

// Reply answers a Command. Every reply carries the grid as it stands after
// the command, whether or not the command succeeded.
type Reply struct {
	Type  string `json:"type"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Snapshot       *wfc.Snapshot  `json:"snapshot"`
	Render         string         `json:"render"`
	Solved         int            `json:"solved"`
	Total          int            `json:"total"`
	Contradictions []wfc.Position `json:"contradictions"`

	SavedID int64 `json:"saved_id,omitempty"`
}
