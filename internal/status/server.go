// Package status exposes a read-only HTTP API over the server's runtime
// state: configured hosts, per-host connection state and history, and a
// live websocket feed of connection events. It is disabled unless a listen
// address is configured, and never exposes credentials.
package status

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JaysonAlbert/log-search-mcp/internal/audit"
	"github.com/JaysonAlbert/log-search-mcp/internal/config"
	"github.com/JaysonAlbert/log-search-mcp/internal/secrets"
	"github.com/JaysonAlbert/log-search-mcp/internal/sshconn"
)

// defaultEventLimit caps audit event listings per request.
const defaultEventLimit = 100

// Server serves the status API.
type Server struct {
	cfg   *config.Manager
	conns *sshconn.Manager
	audit *audit.Store
}

// New creates a status server. audit may be nil when the audit store is
// disabled; the events endpoint then serves the in-memory history only.
func New(cfg *config.Manager, conns *sshconn.Manager, auditStore *audit.Store) *Server {
	return &Server{cfg: cfg, conns: conns, audit: auditStore}
}

// hostView is a host profile reduced to its non-secret fields plus the
// current connection state.
type hostView struct {
	Name         string `json:"name"`
	Hostname     string `json:"hostname"`
	Port         int    `json:"port"`
	Username     string `json:"username"`
	AppName      string `json:"app_name"`
	AuthMethod   string `json:"auth_method"`
	Password     string `json:"password,omitempty"` // masked
	FileAgeLimit int    `json:"file_age_limit,omitempty"`
	Timeout      int    `json:"timeout"`
	State        string `json:"state"`
}

func (s *Server) view(p config.HostProfile) hostView {
	v := hostView{
		Name:         p.Name,
		Hostname:     p.Hostname,
		Port:         p.Port,
		Username:     p.Username,
		AppName:      p.AppName,
		FileAgeLimit: p.FileAgeLimit,
		Timeout:      p.Timeout,
		State:        s.conns.State(p.Name).String(),
	}
	if p.PrivateKeyPath != "" {
		v.AuthMethod = "private_key"
	} else {
		v.AuthMethod = "password"
		v.Password = secrets.Mask(p.Password)
	}
	return v
}

// Router builds the chi router for the status API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", s.health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/hosts", s.listHosts)
		r.Get("/hosts/{name}", s.getHost)
		r.Get("/hosts/{name}/events", s.hostEvents)
		r.Get("/hosts/{name}/transitions", s.hostTransitions)
	})
	r.Get("/ws/events", s.wsEvents)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"hosts":  len(s.cfg.ListNames()),
	})
}

func (s *Server) listHosts(w http.ResponseWriter, r *http.Request) {
	names := s.cfg.ListNames()
	views := make([]hostView, 0, len(names))
	for _, name := range names {
		p, err := s.cfg.Get(name)
		if err != nil {
			continue
		}
		views = append(views, s.view(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) getHost(w http.ResponseWriter, r *http.Request) {
	p, err := s.cfg.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.view(p))
}

func (s *Server) hostEvents(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.cfg.Get(name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	if s.audit != nil {
		events, err := s.audit.RecentByHost(name, defaultEventLimit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, events)
		return
	}
	writeJSON(w, http.StatusOK, s.conns.EventHistory(name))
}

func (s *Server) hostTransitions(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.cfg.Get(name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.conns.Transitions(name))
}

// wsEvents streams live connection events as JSON messages until the
// client disconnects.
func (s *Server) wsEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("[status] ws accept: %v", err)
		return
	}
	defer conn.CloseNow()

	events, cancel := s.conns.SubscribeEvents()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}

// Serve runs the status API on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler) {
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[status] listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("[status] server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
