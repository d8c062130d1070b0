// Package server exposes draws over HTTP: a JSON endpoint, a rendered card,
// the draw history, a websocket feed and the static page and assets.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/synrais/ROLL-GO/pkg/assets"
	"github.com/synrais/ROLL-GO/pkg/config"
	"github.com/synrais/ROLL-GO/pkg/history"
	"github.com/synrais/ROLL-GO/pkg/logging"
	"github.com/synrais/ROLL-GO/pkg/rng"
	"github.com/synrais/ROLL-GO/pkg/run"
	"github.com/synrais/ROLL-GO/pkg/table"
)

var log = logging.New("SERVER")

const shutdownTimeout = 5 * time.Second

// Server holds everything the handlers share.
type Server struct {
	cfg    *config.UserConfig
	gen    rng.Generator
	runner *run.Runner
	store  *history.Store
	hub    *Hub

	mu  sync.RWMutex
	tbl table.Table

	// base context for background playback
	ctx context.Context
	// held while a player runs; plays waits for them on shutdown
	playing sync.Mutex
	plays   sync.WaitGroup
}

// New builds a server. store may be nil when history is disabled.
func New(cfg *config.UserConfig, tbl table.Table, gen rng.Generator, runner *run.Runner, store *history.Store) *Server {
	return &Server{
		cfg:    cfg,
		gen:    gen,
		runner: runner,
		store:  store,
		hub:    NewHub(cfg.Server.CorsOrigins),
		tbl:    tbl,
		ctx:    context.Background(),
	}
}

// Table returns the active range table.
func (s *Server) Table() table.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tbl
}

// SetTable swaps in a new table if it validates.
func (s *Server) SetTable(t table.Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.tbl = t
	s.mu.Unlock()
	return nil
}

// Router returns the HTTP handler with CORS applied.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/generate", s.handleGenerate).Methods(http.MethodGet)
	r.HandleFunc("/generate/card.png", s.handleCard).Methods(http.MethodGet)
	r.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/history.csv", s.handleHistoryCSV).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.ServeWS)

	assetsDir := s.cfg.Server.AssetsDir
	if assetsDir == "" {
		assetsDir = "assets"
	}
	r.PathPrefix("/assets/").Methods(http.MethodGet, http.MethodHead).Handler(
		http.StripPrefix("/assets/", http.FileServer(http.Dir(assetsDir))))

	r.PathPrefix("/").Methods(http.MethodGet, http.MethodHead).Handler(s.staticHandler())

	origins := s.cfg.Server.CorsOrigins
	if len(origins) == 0 {
		return r
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler(r)
}

func (s *Server) staticHandler() http.Handler {
	dir := s.cfg.Server.StaticDir
	if dir != "" {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return indexOnly(http.Dir(dir))
		}
		log.Printf("Static dir %s not found, serving built-in page", dir)
	}
	return indexOnly(http.FS(assets.Static()))
}

// indexOnly serves files and directory index.html pages from fsys but never
// generates a directory listing.
func indexOnly(fsys http.FileSystem) http.Handler {
	files := http.FileServer(fsys)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		f, err := fsys.Open(name)
		if err == nil {
			fi, statErr := f.Stat()
			f.Close()
			if statErr == nil && fi.IsDir() {
				idx, err := fsys.Open(path.Join(name, "index.html"))
				if err != nil {
					http.NotFound(w, r)
					return
				}
				idx.Close()
			}
		}
		files.ServeHTTP(w, r)
	})
}

// draw rolls a number, records or plays it, and pushes it to subscribers.
func (s *Server) draw() table.Selection {
	sel := s.Table().Roll(s.gen)
	log.Printf("Generated %d: %s", sel.Number, sel.Message)

	if s.cfg.Server.Play && sel.HasVideo() {
		s.playInBackground(sel)
	} else {
		s.runner.Record(sel, history.SourceHTTP, false)
	}
	s.hub.Broadcast(sel)
	return sel
}

// playInBackground starts the player unless one is already running, in which
// case the draw is only recorded.
func (s *Server) playInBackground(sel table.Selection) {
	if !s.playing.TryLock() {
		log.Printf("Player busy, not playing %d", sel.Number)
		s.runner.Record(sel, history.SourceHTTP, false)
		return
	}
	s.plays.Add(1)
	go func() {
		defer s.plays.Done()
		defer s.playing.Unlock()
		s.runner.Play(s.ctx, sel, history.SourceHTTP)
	}()
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.draw())
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	sel := s.draw()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := RenderCard(w, sel); err != nil {
		log.Errorf("render card: %v", err)
	}
}

func (s *Server) recent(r *http.Request) ([]history.Record, error) {
	if s.store == nil {
		return nil, history.ErrDisabled
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, errBadLimit
		}
		limit = n
	}
	return s.store.Recent(limit)
}

var errBadLimit = errors.New("limit must be a non-negative integer")

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.recent(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleHistoryCSV(w http.ResponseWriter, r *http.Request) {
	recs, err := s.recent(r)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	if err := history.WriteCSV(w, recs); err != nil {
		log.Errorf("write csv: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, history.ErrDisabled):
		status = http.StatusNotFound
	case errors.Is(err, errBadLimit):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Run serves until ctx is done. When the config has an ini path it is
// watched and valid tables are swapped in; with [server] mdns the service is
// advertised on the local network.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	s.ctx = ctx

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("Starting server at http://%s", ln.Addr())

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down")
		s.hub.Close()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if s.cfg.IniPath != "" {
		g.Go(func() error {
			if err := config.Watch(ctx, s.cfg.IniPath, config.NewDefaultConfig, s.reload); err != nil {
				log.Errorf("config watch: %v", err)
			}
			return nil
		})
	}

	if s.cfg.Server.Mdns {
		port := 0
		if addr, ok := ln.Addr().(*net.TCPAddr); ok {
			port = addr.Port
		}
		g.Go(func() error {
			if err := Advertise(ctx, port); err != nil {
				log.Errorf("mdns: %v", err)
			}
			return nil
		})
	}

	err := g.Wait()
	// players see ctx done too, so this is bounded by their kill grace
	s.plays.Wait()
	return err
}

func (s *Server) reload(cfg *config.UserConfig, err error) {
	if err != nil {
		log.Errorf("config reload: %v", err)
		return
	}
	t, err := table.FromConfig(cfg)
	if err != nil {
		log.Errorf("config reload: %v (keeping previous table)", err)
		return
	}
	if err := s.SetTable(t); err != nil {
		log.Errorf("config reload: %v", err)
		return
	}
	log.Printf("Reloaded range table from %s", s.cfg.IniPath)
}
