package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lawnchairsociety/tilecollapse/internal/wfc"
)

// ErrNotFound is returned when a solution id does not exist.
var ErrNotFound = errors.New("store: solution not found")

// ErrNameTaken is returned when saving under a name that is already in use.
var ErrNameTaken = errors.New("store: solution name already in use")

// DefaultListLimit applies when ListSolutions is called with a non-positive limit.
const DefaultListLimit = 50

// SavedSolution is a stored snapshot with its row metadata.
type SavedSolution struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Snapshot  *wfc.Snapshot `json:"snapshot"`
}

// SolutionSummary describes a stored solution without its cells.
type SolutionSummary struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name,omitempty"`
	RuleSet        string    `json:"ruleset"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	Seed           int64     `json:"seed"`
	Solved         bool      `json:"solved"`
	Contradictions int       `json:"contradictions"`
	CreatedAt      time.Time `json:"created_at"`
}

// SaveSolution stores a snapshot and returns its id. An empty name stores
// the solution unnamed; names are otherwise unique.
func (s *Store) SaveSolution(name string, snap *wfc.Snapshot) (int64, error) {
	return s.insert(name, snap, time.Time{})
}

// ImportSolution stores a solution read from another store, keeping its name
// and creation time. The row gets a new id, which is returned.
func (s *Store) ImportSolution(saved *SavedSolution) (int64, error) {
	if saved == nil {
		return 0, errors.New("store: nil solution")
	}
	return s.insert(saved.Name, saved.Snapshot, saved.CreatedAt)
}

// insert adds a row. A zero createdAt leaves the column to its default.
func (s *Store) insert(name string, snap *wfc.Snapshot, createdAt time.Time) (int64, error) {
	if snap == nil {
		return 0, errors.New("store: nil snapshot")
	}

	cells, err := json.Marshal(snap.Cells)
	if err != nil {
		return 0, fmt.Errorf("failed to encode cells: %w", err)
	}

	var nameArg sql.NullString
	if name = strings.TrimSpace(name); name != "" {
		nameArg = sql.NullString{String: name, Valid: true}
	}

	columns := "name, ruleset, fingerprint, width, height, seed, solved, contradictions, cells"
	values := "?, ?, ?, ?, ?, ?, ?, ?, ?"
	args := []any{
		nameArg, snap.RuleSet, snap.Fingerprint, snap.Width, snap.Height, snap.Seed,
		boolToInt(snap.Solved), snap.Contradictions(), string(cells),
	}
	if !createdAt.IsZero() {
		columns += ", created_at"
		values += ", ?"
		args = append(args, createdAt.UTC())
	}

	insert := s.dialect.Rebind("INSERT INTO solutions (" + columns + ") VALUES (" + values + ")")
	id, err := s.dialect.InsertID(s.db, insert, args...)
	if err != nil {
		if s.dialect.IsDuplicateKeyError(err) {
			return 0, fmt.Errorf("%w: %q", ErrNameTaken, name)
		}
		return 0, fmt.Errorf("failed to save solution: %w", err)
	}

	return id, nil
}

// GetSolution loads a stored solution by id.
func (s *Store) GetSolution(id int64) (*SavedSolution, error) {
	var (
		saved  SavedSolution
		snap   wfc.Snapshot
		name   sql.NullString
		solved int
		cells  string
	)

	err := s.db.QueryRow(s.dialect.Rebind(`
		SELECT id, name, ruleset, fingerprint, width, height, seed, solved, cells, created_at
		FROM solutions WHERE id = ?`), id,
	).Scan(&saved.ID, &name, &snap.RuleSet, &snap.Fingerprint, &snap.Width, &snap.Height,
		&snap.Seed, &solved, &cells, &saved.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get solution: %w", err)
	}

	if err := json.Unmarshal([]byte(cells), &snap.Cells); err != nil {
		return nil, fmt.Errorf("failed to decode cells of solution %d: %w", id, err)
	}
	snap.Solved = solved != 0
	saved.Name = name.String
	saved.Snapshot = &snap

	return &saved, nil
}

// ListSolutions returns summaries newest first. An empty ruleSet lists all
// rule sets; rule set names match without case.
func (s *Store) ListSolutions(ruleSet string, limit int) ([]SolutionSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, name, ruleset, width, height, seed, solved, contradictions, created_at
		FROM solutions`
	var args []any
	if ruleSet != "" {
		query += ` WHERE ruleset = ?`
		args = append(args, ruleSet)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list solutions: %w", err)
	}
	defer rows.Close()

	summaries := []SolutionSummary{}
	for rows.Next() {
		var (
			sum    SolutionSummary
			name   sql.NullString
			solved int
		)
		if err := rows.Scan(&sum.ID, &name, &sum.RuleSet, &sum.Width, &sum.Height,
			&sum.Seed, &solved, &sum.Contradictions, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan solution: %w", err)
		}
		sum.Name = name.String
		sum.Solved = solved != 0
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// DeleteSolution removes a stored solution.
func (s *Store) DeleteSolution(id int64) error {
	result, err := s.db.Exec(s.dialect.Rebind(`DELETE FROM solutions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete solution: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete solution: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// SolutionIDs returns every stored id in ascending order.
func (s *Store) SolutionIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM solutions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list solution ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan solution id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountSolutions returns the number of stored solutions.
func (s *Store) CountSolutions() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM solutions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count solutions: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
