// Package server exposes the solver over HTTP: REST endpoints for one-shot
// generation and stored solutions, and WebSocket sessions for step-by-step
// collapsing.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/tilecollapse/internal/antispam"
	"github.com/lawnchairsociety/tilecollapse/internal/config"
	"github.com/lawnchairsociety/tilecollapse/internal/logger"
	"github.com/lawnchairsociety/tilecollapse/internal/namefilter"
	"github.com/lawnchairsociety/tilecollapse/internal/store"
	"github.com/lawnchairsociety/tilecollapse/internal/wfc"
)

// SolutionStore is the persistence the server needs. *store.Store satisfies it.
type SolutionStore interface {
	SaveSolution(name string, snap *wfc.Snapshot) (int64, error)
	GetSolution(id int64) (*store.SavedSolution, error)
	ListSolutions(ruleSet string, limit int) ([]store.SolutionSummary, error)
	DeleteSolution(id int64) error
}

// Server routes HTTP and WebSocket traffic to the solver.
type Server struct {
	cfg         *config.ServiceConfig
	rules       *wfc.RuleSetRegistry
	store       SolutionStore
	router      *chi.Mux
	slots       *sessionSlots
	backoff     *GenerationBackoff
	names       *namefilter.NameFilter
	httpServer  *http.Server

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	clients map[Client]struct{}
	wg      sync.WaitGroup

	shutdownOnce sync.Once
}

// New builds a server. st may be nil, in which case the store endpoints
// answer 503 and sessions cannot save.
func New(cfg *config.ServiceConfig, rules *wfc.RuleSetRegistry, st SolutionStore) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:         cfg,
		rules:       rules,
		store:       st,
		router:      chi.NewRouter(),
		slots:       newSessionSlots(cfg.Connections),
		backoff:     NewGenerationBackoff(cfg.Backoff),
		ctx:         ctx,
		cancel:      cancel,
		clients:     make(map[Client]struct{}),
	}
	s.routes()
	return s
}

// SetNameFilter screens the names solutions are saved under, both from
// POST /api/solutions and from session save commands.
func (s *Server) SetNameFilter(nf *namefilter.NameFilter) {
	s.names = nf
}

func (s *Server) routes() {
	r := s.router
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocketUpgrade)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(s.requestTimeout()))
		r.Use(jsonContentType)

		r.Get("/rulesets", s.handleListRuleSets)
		r.Get("/rulesets/{name}", s.handleGetRuleSet)

		r.Post("/solutions", s.handleGenerate)
		r.Get("/solutions", s.handleListSolutions)
		r.Get("/solutions/{id}", s.handleGetSolution)
		r.Delete("/solutions/{id}", s.handleDeleteSolution)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", r.URL.Path)
	})
}

func (s *Server) requestTimeout() time.Duration {
	if s.cfg.HTTP.RequestTimeoutSeconds > 0 {
		return time.Duration(s.cfg.HTTP.RequestTimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

// Router exposes the handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe serves on the configured address until Shutdown.
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTP.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	logger.Always("Listening", "address", s.cfg.HTTP.Address, "rulesets", s.rules.Count())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes open sessions and waits for them
// to finish or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cancel()
		s.backoff.Stop()

		s.mu.Lock()
		srv := s.httpServer
		for c := range s.clients {
			c.Close()
		}
		s.mu.Unlock()

		if srv != nil {
			err = srv.Shutdown(ctx)
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}
	})
	return err
}

// ActiveSessions returns the number of open WebSocket sessions.
func (s *Server) ActiveSessions() int {
	n, _ := s.slots.count()
	return n
}

// handleWebSocketUpgrade validates the session parameters, takes a session
// slot and upgrades the connection.
//
//	GET /ws?ruleset=coast&width=8&height=6&seed=42
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rules, ok := s.rules.Get(q.Get("ruleset"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_ruleset", q.Get("ruleset"))
		return
	}
	width, errW := strconv.Atoi(q.Get("width"))
	height, errH := strconv.Atoi(q.Get("height"))
	if errW != nil || errH != nil || !s.cfg.Solver.AllowsSize(width, height) {
		writeError(w, http.StatusBadRequest, "invalid_size", "width and height must be within the solver limits")
		return
	}
	seed := s.cfg.Solver.DefaultSeed
	if v := q.Get("seed"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_seed", v)
			return
		}
		seed = n
	}

	// chi's RealIP middleware has already applied X-Forwarded-For / X-Real-IP
	clientIP := extractIP(r.RemoteAddr)

	release, ok := s.slots.acquire(clientIP)
	if !ok {
		logger.Warning("WebSocket connection rejected - limit exceeded", "client_ip", clientIP)
		writeError(w, http.StatusTooManyRequests, "too_many_sessions", "Too many sessions. Please try again later.")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"client_ip", clientIP)
			}
			return allowed
		},
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		logger.Warning("WebSocket upgrade failed", "error", err, "client_ip", clientIP)
		release()
		return
	}

	client := NewWebSocketClient(wsConn, s.cfg.WebSocket.MaxMessageSize)
	session, err := NewSession(client, rules, width, height, seed, s.store)
	if err != nil {
		logger.Error("Failed to start session", "error", err)
		client.Close()
		release()
		return
	}
	session.SetNameFilter(s.names)
	c := s.cfg.Commands
	session.SetThrottle(antispam.NewTracker(antispam.ConfigFromYAML(c.Enabled, c.MaxCommands, c.WindowSeconds)))

	if !s.trackClient(client) {
		client.Close()
		release()
		return
	}
	go s.runSession(session, client, clientIP, release)
}

// trackClient registers a session's client so Shutdown can close it. It
// returns false once shutdown has started.
func (s *Server) trackClient(client Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.clients[client] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) runSession(session *Session, client Client, clientIP string, release func()) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, client)
		s.mu.Unlock()
		client.Close()
		release()
		s.wg.Done()
	}()

	logger.Info("Session started", "client_ip", clientIP, "ruleset", session.rules.Table.Name())
	err := session.Run(s.ctx)
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
		!errors.Is(err, context.Canceled) {
		logger.Debug("Session ended", "client_ip", clientIP, "error", err)
		return
	}
	logger.Info("Session ended", "client_ip", clientIP)
}
