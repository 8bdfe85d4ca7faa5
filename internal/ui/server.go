// Package ui serves run history and persisted report tables over HTTP.
// Everything is read-only; the server never mutates the state database
// or the output directory.
package ui

import (
	"context"
	"encoding/csv"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/beacon-epi/empdep/internal/state"
)

// Server is the report server.
type Server struct {
	store     *state.Store
	outputDir string
	port      int
	logger    *slog.Logger
}

// Config holds configuration for the report server.
type Config struct {
	Store     *state.Store
	OutputDir string
	Port      int
	Logger    *slog.Logger
}

// NewServer creates a new report server instance.
// If logger is nil, a discard logger is used.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		store:     cfg.Store,
		outputDir: cfg.OutputDir,
		port:      cfg.Port,
		logger:    logger,
	}
}

// Serve starts the report server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting report server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start HTTP server
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down report server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Routes builds the HTTP handler tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/", s.handleHome)
	r.Get("/runs/{runID}", s.handleRun)
	r.Get("/tables/{name}", s.handleTable)

	return r
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	runsSection := section{
		Title:   "Recent runs",
		Columns: []string{"run", "kind", "status", "started", "completed", "error"},
	}
	for _, run := range runs {
		runsSection.Rows = append(runsSection.Rows, []cell{
			{Text: run.ID, Href: "/runs/" + run.ID},
			{Text: run.Kind},
			{Text: string(run.Status)},
			{Text: formatTime(&run.StartedAt)},
			{Text: formatTime(run.CompletedAt)},
			{Text: run.Error},
		})
	}

	tablesSection := section{
		Title:   "Persisted tables",
		Columns: []string{"table"},
	}
	for _, name := range s.tableNames() {
		tablesSection.Rows = append(tablesSection.Rows, []cell{
			{Text: name, Href: "/tables/" + name},
		})
	}

	s.render(w, pageData{
		Title:    "empdep reports",
		Sections: []section{runsSection, tablesSection},
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.store.GetRun(runID)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	stages, err := s.store.ListStageRuns(runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	exclusions, err := s.store.ListExclusions(runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	runSection := section{
		Title:   "Run",
		Columns: []string{"run", "kind", "status", "started", "completed", "error"},
		Rows: [][]cell{{
			{Text: run.ID},
			{Text: run.Kind},
			{Text: string(run.Status)},
			{Text: formatTime(&run.StartedAt)},
			{Text: formatTime(run.CompletedAt)},
			{Text: run.Error},
		}},
	}

	stagesSection := section{
		Title:   "Stages",
		Columns: []string{"stage", "status", "rows in", "rows out", "error"},
	}
	for _, st := range stages {
		stagesSection.Rows = append(stagesSection.Rows, []cell{
			{Text: st.Stage},
			{Text: string(st.Status)},
			{Text: fmt.Sprintf("%d", st.RowsIn)},
			{Text: fmt.Sprintf("%d", st.RowsOut)},
			{Text: st.Error},
		})
	}

	exclusionsSection := section{
		Title:   "Exclusions",
		Columns: []string{"stage", "reason", "count"},
	}
	for _, ex := range exclusions {
		exclusionsSection.Rows = append(exclusionsSection.Rows, []cell{
			{Text: ex.Stage},
			{Text: ex.Reason},
			{Text: fmt.Sprintf("%d", ex.Count)},
		})
	}

	s.render(w, pageData{
		Title:    "Run " + run.ID,
		Sections: []section{runSection, stagesSection, exclusionsSection},
	})
}

// tableNameRE keeps table lookups from escaping the output directory.
var tableNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !tableNameRE.MatchString(name) {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(filepath.Join(s.outputDir, name+".csv"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer func() { _ = f.Close() }()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	tableSection := section{Title: name}
	if len(records) > 0 {
		tableSection.Columns = records[0]
		for _, rec := range records[1:] {
			row := make([]cell, len(rec))
			for i, v := range rec {
				row[i] = cell{Text: v}
			}
			tableSection.Rows = append(tableSection.Rows, row)
		}
	}

	s.render(w, pageData{
		Title:    "Table " + name,
		Sections: []section{tableSection},
	})
}

// tableNames lists the persisted CSV tables in the output directory.
func (s *Server) tableNames() []string {
	matches, err := filepath.Glob(filepath.Join(s.outputDir, "*.csv"))
	if err != nil {
		return nil
	}

	var names []string
	for _, m := range matches {
		name := strings.TrimSuffix(filepath.Base(m), ".csv")
		if tableNameRE.MatchString(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Server) render(w http.ResponseWriter, page pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, page); err != nil {
		s.logger.Error("failed to render page", "error", err)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

type pageData struct {
	Title    string
	Sections []section
}

type section struct {
	Title   string
	Columns []string
	Rows    [][]cell
}

type cell struct {
	Text string
	Href string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #1a1a2e; }
h1 { font-size: 1.4rem; }
h2 { font-size: 1.1rem; margin-top: 2rem; }
table { border-collapse: collapse; margin-top: 0.5rem; }
th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; font-size: 0.9rem; }
th { background: #f0f0f5; }
a { color: #0b5394; }
p.empty { color: #777; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p><a href="/">all runs</a></p>
{{range .Sections}}
<h2>{{.Title}}</h2>
{{if .Rows}}
<table>
<tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{if .Href}}<a href="{{.Href}}">{{.Text}}</a>{{else}}{{.Text}}{{end}}</td>{{end}}</tr>{{end}}
</table>
{{else}}
<p class="empty">nothing recorded yet</p>
{{end}}
{{end}}
</body>
</html>
`))
