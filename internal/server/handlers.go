package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lawnchairsociety/tilecollapse/internal/logger"
	"github.com/lawnchairsociety/tilecollapse/internal/store"
	"github.com/lawnchairsociety/tilecollapse/internal/wfc"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status   string `json:"status"`
	RuleSets int    `json:"rulesets"`
	Sessions int    `json:"sessions"`
	Storage  bool   `json:"storage"`
}

type ruleSetInfo struct {
	Name        string         `json:"name"`
	Fingerprint string         `json:"fingerprint"`
	SideMode    string         `json:"side_mode"`
	Identifiers []int          `json:"identifiers"`
	Glyphs      map[int]string `json:"glyphs,omitempty"`
}

type ruleSetDetail struct {
	ruleSetInfo
	// Neighbours[id][side] lists the tiles allowed next to id on that side
	Neighbours map[int]map[string][]int `json:"neighbours"`
}

type generateRequest struct {
	RuleSet             string        `json:"ruleset"`
	Width               int           `json:"width"`
	Height              int           `json:"height"`
	Seed                int64         `json:"seed"`
	Surround            *int          `json:"surround,omitempty"`
	Start               *wfc.Position `json:"start,omitempty"`
	AllowContradictions bool          `json:"allow_contradictions"`
	Save                bool          `json:"save"`
	Name                string        `json:"name,omitempty"`
}

type generateResponse struct {
	ID             int64          `json:"id,omitempty"`
	Seed           int64          `json:"seed"`
	Attempts       int            `json:"attempts"`
	Render         string         `json:"render"`
	Contradictions []wfc.Position `json:"contradictions"`
	Snapshot       *wfc.Snapshot  `json:"snapshot"`
}

type solutionResponse struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Render    string        `json:"render,omitempty"`
	Snapshot  *wfc.Snapshot `json:"snapshot"`
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		RuleSets: s.rules.Count(),
		Sessions: s.ActiveSessions(),
		Storage:  s.store != nil,
	})
}

func describeRuleSet(set *wfc.LoadedRuleSet) ruleSetInfo {
	info := ruleSetInfo{
		Name:        set.Table.Name(),
		Fingerprint: set.Table.Fingerprint(),
		SideMode:    set.Rules.SideMode.String(),
		Identifiers: set.Table.Identifiers(),
	}
	if len(set.Glyphs) > 0 {
		info.Glyphs = make(map[int]string, len(set.Glyphs))
		for id, g := range set.Glyphs {
			info.Glyphs[id] = string(g)
		}
	}
	return info
}

func (s *Server) handleListRuleSets(w http.ResponseWriter, r *http.Request) {
	names := s.rules.Names()
	out := make([]ruleSetInfo, 0, len(names))
	for _, name := range names {
		if set, ok := s.rules.Get(name); ok {
			out = append(out, describeRuleSet(set))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRuleSet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	set, ok := s.rules.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_ruleset", name)
		return
	}

	detail := ruleSetDetail{
		ruleSetInfo: describeRuleSet(set),
		Neighbours:  make(map[int]map[string][]int),
	}
	for _, id := range detail.Identifiers {
		sides := make(map[string][]int, 4)
		for _, side := range wfc.AllSides() {
			n := set.Table.Neighbours(id, side)
			if n == nil {
				n = []int{}
			}
			sides[side.String()] = n
		}
		detail.Neighbours[id] = sides
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleGenerate runs a one-shot generation and optionally stores it.
//
//	POST /api/solutions {"ruleset":"coast","width":16,"height":8,"seed":7,"save":true}
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	clientIP := extractIP(r.RemoteAddr)
	if locked, remaining := s.backoff.IsLocked(clientIP); locked {
		retryAfter(w, remaining)
		writeError(w, http.StatusTooManyRequests, "backoff", "Too many failed generations. Please wait before retrying.")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	set, ok := s.rules.Get(req.RuleSet)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_ruleset", req.RuleSet)
		return
	}
	if !s.cfg.Solver.AllowsSize(req.Width, req.Height) {
		writeError(w, http.StatusBadRequest, "invalid_size", "width and height must be within the solver limits")
		return
	}
	if req.Surround != nil && !slices.Contains(set.Table.Identifiers(), *req.Surround) {
		writeError(w, http.StatusBadRequest, "unknown_tile", strconv.Itoa(*req.Surround))
		return
	}
	if req.Save && s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage_disabled", "")
		return
	}
	if req.Save {
		if err := s.names.Check(req.Name); err != nil {
			writeError(w, http.StatusBadRequest, "name_rejected", err.Error())
			return
		}
	}

	seed := req.Seed
	if seed == 0 {
		seed = s.cfg.Solver.DefaultSeed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	genCfg := wfc.DefaultGenerateConfig(req.Width, req.Height, seed)
	genCfg.Surround = req.Surround
	genCfg.Start = req.Start
	genCfg.AllowContradictions = req.AllowContradictions
	if s.cfg.Solver.MaxAttempts > 0 {
		genCfg.MaxAttempts = s.cfg.Solver.MaxAttempts
	}

	gen, err := wfc.Generate(r.Context(), set.Table, genCfg)
	if err != nil {
		switch {
		case errors.Is(err, wfc.ErrContradiction):
			if locked, d := s.backoff.RecordFailure(clientIP); locked {
				logger.Warning("Client locked out after failed generations",
					"client_ip", clientIP, "lockout", d)
				retryAfter(w, d)
			}
			writeError(w, http.StatusUnprocessableEntity, "contradiction", err.Error())
		case errors.Is(err, wfc.ErrInvalidSize), errors.Is(err, wfc.ErrOutOfBounds):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			writeError(w, http.StatusServiceUnavailable, "timeout", "generation did not finish in time")
		default:
			logger.Error("Generation failed", "ruleset", req.RuleSet, "error", err)
			writeError(w, http.StatusInternalServerError, "internal", "")
		}
		return
	}
	s.backoff.RecordSuccess(clientIP)

	snap := gen.Solution.Snapshot()
	resp := generateResponse{
		Seed:           gen.Seed,
		Attempts:       gen.Attempts,
		Render:         wfc.RenderASCII(gen.Solution, set.Glyphs),
		Contradictions: gen.Solution.Contradictions(),
		Snapshot:       snap,
	}
	if resp.Contradictions == nil {
		resp.Contradictions = []wfc.Position{}
	}

	status := http.StatusOK
	if req.Save {
		id, err := s.store.SaveSolution(req.Name, snap)
		if err != nil {
			if errors.Is(err, store.ErrNameTaken) {
				writeError(w, http.StatusConflict, "name_taken", req.Name)
				return
			}
			logger.Error("Failed to save solution", "error", err)
			writeError(w, http.StatusInternalServerError, "internal", "")
			return
		}
		resp.ID = id
		status = http.StatusCreated
	}

	logger.Info("Generated solution",
		"ruleset", req.RuleSet,
		"width", req.Width,
		"height", req.Height,
		"seed", gen.Seed,
		"attempts", gen.Attempts,
		"saved_id", resp.ID)
	writeJSON(w, status, resp)
}

func (s *Server) handleListSolutions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage_disabled", "")
		return
	}

	limit := store.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", v)
			return
		}
		limit = n
	}

	list, err := s.store.ListSolutions(r.URL.Query().Get("ruleset"), limit)
	if err != nil {
		logger.Error("Failed to list solutions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSolution(w http.ResponseWriter, r *http.Request) {
	id, ok := s.solutionID(w, r)
	if !ok {
		return
	}

	saved, err := s.store.GetSolution(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "")
			return
		}
		logger.Error("Failed to load solution", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "")
		return
	}

	resp := solutionResponse{
		ID:        saved.ID,
		Name:      saved.Name,
		CreatedAt: saved.CreatedAt,
		Snapshot:  saved.Snapshot,
	}
	// Only render when the rule set it was built from is still loaded unchanged
	if set, ok := s.rules.Get(saved.Snapshot.RuleSet); ok {
		if render, err := renderSnapshot(set, saved.Snapshot); err == nil {
			resp.Render = render
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteSolution(w http.ResponseWriter, r *http.Request) {
	id, ok := s.solutionID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteSolution(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "")
			return
		}
		logger.Error("Failed to delete solution", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// solutionID parses {id} and checks storage is available, writing the error
// response itself when not.
func (s *Server) solutionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage_disabled", "")
		return 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", chi.URLParam(r, "id"))
		return 0, false
	}
	return id, true
}

func renderSnapshot(set *wfc.LoadedRuleSet, snap *wfc.Snapshot) (string, error) {
	solver, err := wfc.NewSolver(set.Table, wfc.Options{Seed: snap.Seed})
	if err != nil {
		return "", err
	}
	sol, err := solver.Restore(snap)
	if err != nil {
		return "", err
	}
	return wfc.RenderASCII(sol, set.Glyphs), nil
}

func retryAfter(w http.ResponseWriter, d time.Duration) {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
}

// extractIP drops the port from a host:port address.
func extractIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
