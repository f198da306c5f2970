package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/lawnchairsociety/tilecollapse/internal/antispam"
	"github.com/lawnchairsociety/tilecollapse/internal/logger"
	"github.com/lawnchairsociety/tilecollapse/internal/namefilter"
	"github.com/lawnchairsociety/tilecollapse/internal/wfc"
)

// Session is one interactive grid driven by a client's commands. It owns its
// solver and solution; nothing in it is shared with other sessions.
type Session struct {
	client Client
	rules  *wfc.LoadedRuleSet
	solver *wfc.Solver
	sol    *wfc.Solution
	store  SolutionStore
	log    *slog.Logger

	names    *namefilter.NameFilter
	throttle *antispam.Tracker
}

// NewSession creates a fresh width x height grid over rules. A nil store
// makes the save command fail.
func NewSession(client Client, rules *wfc.LoadedRuleSet, width, height int, seed int64, st SolutionStore) (*Session, error) {
	log := logger.With("component", "session", "remote_addr", client.RemoteAddr(), "ruleset", rules.Table.Name())

	solver, err := wfc.NewSolver(rules.Table, wfc.Options{Seed: seed, Logger: log})
	if err != nil {
		return nil, err
	}
	sol, err := solver.CreateSolution(width, height)
	if err != nil {
		return nil, err
	}

	return &Session{
		client: client,
		rules:  rules,
		solver: solver,
		sol:    sol,
		store:  st,
		log:    log,
	}, nil
}

// SetNameFilter screens the names passed to the save command.
func (s *Session) SetNameFilter(nf *namefilter.NameFilter) {
	s.names = nf
}

// SetThrottle limits how fast the client may send commands.
func (s *Session) SetThrottle(t *antispam.Tracker) {
	s.throttle = t
}

// Solution returns the session's grid.
func (s *Session) Solution() *wfc.Solution {
	return s.sol
}

// Run sends the initial state and then answers commands until the client
// disconnects or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	if err := s.client.Send(s.reply(CmdState, nil)); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cmd, err := s.client.ReadCommand()
		if err != nil {
			if errors.Is(err, ErrBadCommand) {
				if err := s.client.Send(s.reply("error", err)); err != nil {
					return err
				}
				continue
			}
			return err
		}

		if s.throttle != nil {
			if result := s.throttle.Check(); !result.Allowed {
				wait := int(math.Ceil(result.Wait.Seconds()))
				s.log.Debug("Command throttled", "command", cmd.Type, "wait_seconds", wait)
				if err := s.client.Send(s.reply(cmd.Type, fmt.Errorf("too many commands, wait %ds", wait))); err != nil {
					return err
				}
				continue
			}
		}

		if err := s.client.Send(s.Handle(ctx, cmd)); err != nil {
			return err
		}
	}
}

// Handle applies one command and builds its reply.
func (s *Session) Handle(ctx context.Context, cmd *Command) *Reply {
	var (
		err     error
		savedID int64
	)

	switch cmd.Type {
	case CmdCollapse:
		if cmd.ID != nil {
			err = s.solver.CollapseTo(s.sol, cmd.X, cmd.Y, *cmd.ID)
		} else {
			err = s.solver.Collapse(s.sol, cmd.X, cmd.Y)
		}
	case CmdFullCollapse:
		err = s.solver.FullCollapseContext(ctx, s.sol, cmd.Start)
	case CmdSurround:
		if cmd.ID == nil {
			err = errors.New("surround needs an id")
			break
		}
		err = s.solver.Surround(s.sol, *cmd.ID)
	case CmdReset:
		s.sol.Reset()
	case CmdState:
	case CmdSave:
		savedID, err = s.save(cmd.Name)
	default:
		err = fmt.Errorf("unknown command %q", cmd.Type)
	}

	if err != nil {
		s.log.Debug("Command failed", "command", cmd.Type, "error", err)
	}

	reply := s.reply(cmd.Type, err)
	reply.SavedID = savedID
	return reply
}

func (s *Session) save(name string) (int64, error) {
	if s.store == nil {
		return 0, errors.New("storage is disabled")
	}
	if err := s.names.Check(name); err != nil {
		return 0, err
	}
	id, err := s.store.SaveSolution(name, s.sol.Snapshot())
	if err != nil {
		return 0, err
	}
	s.log.Info("Solution saved", "id", id, "name", name)
	return id, nil
}

func (s *Session) reply(typ string, err error) *Reply {
	solved, total := s.sol.Progress()
	contradictions := s.sol.Contradictions()
	if contradictions == nil {
		contradictions = []wfc.Position{}
	}

	reply := &Reply{
		Type:           typ,
		OK:             err == nil,
		Snapshot:       s.sol.Snapshot(),
		Render:         wfc.RenderASCII(s.sol, s.rules.Glyphs),
		Solved:         solved,
		Total:          total,
		Contradictions: contradictions,
	}
	if err != nil {
		reply.Error = err.Error()
	}
	return reply
}
