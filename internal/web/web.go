package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"weekplan/internal/config"
	"weekplan/internal/drag"
	appLog "weekplan/internal/log"
	"weekplan/internal/refresh"
)

// Server is the host bridge: one websocket per browser tab, each driving
// its own drag.Controller against the shared collaborator client.
type Server struct {
	sender    drag.Sender
	refresher *refresh.Refresher
	mux       *http.ServeMux

	mu       sync.RWMutex
	cfg      *config.Config
	sessions map[*drag.Controller]struct{}
}

// NewServer constructs a new Server. refresher may be nil.
func NewServer(cfg *config.Config, sender drag.Sender, refresher *refresh.Refresher) *Server {
	s := &Server{
		sender:    sender,
		refresher: refresher,
		mux:       http.NewServeMux(),
		cfg:       cfg,
		sessions:  make(map[*drag.Controller]struct{}),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.basicAuthMiddleware(s.mux)
}

// Apply swaps in a reloaded config. Open sessions pick up the new click
// suppression window; new sessions use every new value.
func (s *Server) Apply(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	ctrls := make([]*drag.Controller, 0, len(s.sessions))
	for c := range s.sessions {
		ctrls = append(ctrls, c)
	}
	s.mu.Unlock()

	for _, c := range ctrls {
		c.SetClickSuppression(cfg.ClickSuppression)
	}
	appLog.Info("config applied to host bridge", "sessions", len(ctrls))
}

// Sessions returns the number of open websocket sessions.
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Server) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth
// when credentials are configured.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := s.config()
		if r.URL.Path == "/health" || cfg == nil || cfg.BasicAuth == nil ||
			cfg.BasicAuth.Username == "" || cfg.BasicAuth.Password == "" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, cfg.BasicAuth.Username) || !secureCompare(p, cfg.BasicAuth.Password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="weekplan", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	cfg := s.config()
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/config", s.handleConfig)
	s.mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleConfig exposes the palette settings a host needs before its
// websocket is up.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, configToMsg(s.config()))
}

func configToMsg(cfg *config.Config) *configMsg {
	return &configMsg{
		DurationOptions:  cfg.DurationOptions,
		DefaultDuration:  cfg.DefaultDuration,
		QuickTaskMinutes: cfg.QuickTaskMinutes,
		ClickSuppression: cfg.ClickSuppression.Milliseconds(),
	}
}

func resolveLocationOrLocal(cfg *config.Config) *time.Location {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
