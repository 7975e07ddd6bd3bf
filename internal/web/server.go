package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/conorfennell/knoldeck/internal/clock"
	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/due"
	"github.com/conorfennell/knoldeck/internal/session"
	"github.com/conorfennell/knoldeck/internal/sm2"
	"github.com/conorfennell/knoldeck/internal/storage"
	decksync "github.com/conorfennell/knoldeck/internal/sync"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// UserHeader names the request header carrying the learner ID.
const UserHeader = "X-Knoldeck-User"

type Option func(*Server)

// WithDefaultUser sets the learner used when a request has no UserHeader.
func WithDefaultUser(id string) Option {
	return func(s *Server) { s.defaultUser = id }
}

// WithSessionLimit caps sessions started without an explicit limit.
func WithSessionLimit(n int) Option {
	return func(s *Server) { s.sessionLimit = n }
}

func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// Sessions is the study service the server drives.
type Sessions interface {
	Overview(ctx context.Context, userID string) (due.Summary, error)
	Active(userID string) bool
	Start(ctx context.Context, userID string, f due.Filter) (int, error)
	Current(userID string) (domain.Card, session.Progress, bool)
	Review(ctx context.Context, userID string, rating domain.Rating) (session.ReviewResult, error)
	End(userID string) (session.Summary, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	db           *storage.DB
	study        Sessions
	syncer       *decksync.Syncer
	clock        clock.Clock
	defaultUser  string
	sessionLimit int
	router       *http.ServeMux
	templates    *template.Template
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, svc Sessions, syncer *decksync.Syncer, opts ...Option) (*Server, error) {
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		db:          db,
		study:       svc,
		syncer:      syncer,
		clock:       clock.System{},
		defaultUser: "default",
		router:      http.NewServeMux(),
		templates:   tpl,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(staticFS))

	s.router.Handle("GET /static/", http.StripPrefix("/static/", fileServer))
	s.router.Handle("GET /{$}", fileServer)

	s.router.HandleFunc("GET /deck", s.handleGetDeck())
	s.router.HandleFunc("POST /session/start", s.handleStartSession())
	s.router.HandleFunc("GET /session/card", s.handleGetCard())
	s.router.HandleFunc("GET /session/answer", s.handleShowAnswer())
	s.router.HandleFunc("POST /session/review", s.handlePostReview())
	s.router.HandleFunc("POST /session/end", s.handleEndSession())

	s.router.HandleFunc("GET /sources", s.handleGetSources())
	s.router.HandleFunc("POST /sources", s.handlePostSource())
	s.router.HandleFunc("DELETE /sources/{id}", s.handleDeleteSource())
	s.router.HandleFunc("POST /sync", s.handlePostSync())
	return nil
}

func (s *Server) user(r *http.Request) string {
	if u := strings.TrimSpace(r.Header.Get(UserHeader)); u != "" {
		return u
	}
	return s.defaultUser
}

// render executes a template into a buffer so a failure can still produce a
// clean 500.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Failed to render template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

type deckView struct {
	Summary due.Summary
	Active  bool
}

type cardView struct {
	Card     domain.Card
	Progress session.Progress
	Choices  []choice
}

// choice is a rating button with the interval it would schedule.
type choice struct {
	Rating   domain.Rating
	Interval int
}

type sourcesView struct {
	Sources []storage.Source
	Report  *decksync.Report
	Error   string
}

// handleGetDeck renders the deck overview.
func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := s.user(r)
		summary, err := s.study.Overview(r.Context(), user)
		if err != nil {
			slog.Error("Failed to summarize deck", "user", user, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.render(w, http.StatusOK, "deck", deckView{Summary: summary, Active: s.study.Active(user)})
	}
}

// handleStartSession opens a session from the posted filter and shows its
// first card.
func (s *Server) handleStartSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := s.user(r)
		f := due.Filter{
			Category: r.PostFormValue("category"),
			Level:    r.PostFormValue("level"),
			Status:   due.Status(r.PostFormValue("status")),
			Tag:      r.PostFormValue("tag"),
			Limit:    s.sessionLimit,
		}
		if v := r.PostFormValue("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "Invalid limit", http.StatusBadRequest)
				return
			}
			f.Limit = n
		}
		if err := f.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		n, err := s.study.Start(r.Context(), user, f)
		switch {
		case errors.Is(err, session.ErrInvalidSessionState):
			// Already studying: carry on with the open session.
		case err != nil:
			slog.Error("Failed to start session", "user", user, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		case n == 0:
			summary, err := s.study.End(user)
			if err != nil {
				slog.Error("Failed to close empty session", "user", user, "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			s.render(w, http.StatusOK, "summary", summary)
			return
		}
		s.showCard(w, r, "card_front")
	}
}

// handleGetCard renders the front of the current card.
func (s *Server) handleGetCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.showCard(w, r, "card_front")
	}
}

// handleShowAnswer renders the back of the current card with the rating
// buttons.
func (s *Server) handleShowAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.showCard(w, r, "card_back")
	}
}

func (s *Server) showCard(w http.ResponseWriter, r *http.Request, name string) {
	card, progress, ok := s.study.Current(s.user(r))
	if !ok {
		s.handleGetDeck()(w, r)
		return
	}
	view := cardView{Card: card, Progress: progress}
	if name == "card_back" {
		outcomes := sm2.Preview(card, s.clock.Now())
		for _, rating := range domain.Ratings {
			view.Choices = append(view.Choices, choice{Rating: rating, Interval: outcomes[rating].Interval})
		}
	}
	s.render(w, http.StatusOK, name, view)
}

// handlePostReview applies a rating and shows the next card, or the summary
// once the session is over.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := s.user(r)
		rating, err := domain.ParseRating(r.PostFormValue("rating"))
		if err != nil {
			http.Error(w, "Invalid rating", http.StatusBadRequest)
			return
		}

		res, err := s.study.Review(r.Context(), user, rating)
		switch {
		case errors.Is(err, session.ErrInvalidSessionState):
			http.Error(w, "No active session", http.StatusConflict)
			return
		case err != nil:
			slog.Error("Failed to record review", "user", user, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if res.Summary != nil {
			s.render(w, http.StatusOK, "summary", *res.Summary)
			return
		}
		s.showCard(w, r, "card_front")
	}
}

// handleEndSession closes the session early and renders its summary.
func (s *Server) handleEndSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := s.user(r)
		summary, err := s.study.End(user)
		switch {
		case errors.Is(err, session.ErrInvalidSessionState):
			http.Error(w, "No active session", http.StatusConflict)
			return
		case err != nil:
			slog.Error("Failed to end session", "user", user, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.render(w, http.StatusOK, "summary", summary)
	}
}

// handleGetSources renders the sources management page.
func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderSources(w, r, "sources", sourcesView{})
	}
}

// handlePostSource adds a new source and re-renders the source list.
func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, sourceType, err := s.syncer.Classify(r.PostFormValue("path"))
		if err != nil {
			s.renderSources(w, r, "source_list", sourcesView{Error: err.Error()})
			return
		}
		if _, err := s.db.InsertSource(r.Context(), s.user(r), path, sourceType); err != nil {
			slog.Error("Failed to insert source", "path", path, "error", err)
			s.renderSources(w, r, "source_list", sourcesView{Error: "Failed to add source " + path})
			return
		}
		s.renderSources(w, r, "source_list", sourcesView{})
	}
}

// handleDeleteSource deletes a source with its cards and re-renders the
// source list.
func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid source ID", http.StatusBadRequest)
			return
		}
		err = s.db.DeleteSource(r.Context(), s.user(r), id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			http.NotFound(w, r)
			return
		case err != nil:
			slog.Error("Failed to delete source", "id", id, "error", err)
			http.Error(w, "Failed to delete source", http.StatusInternalServerError)
			return
		}
		s.renderSources(w, r, "source_list", sourcesView{})
	}
}

// handlePostSync runs a sync in the foreground and re-renders the source list
// with its report.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.syncer.Run(r.Context(), s.user(r))
		if err != nil {
			slog.Error("Sync failed", "error", err)
			s.renderSources(w, r, "source_list", sourcesView{Error: "Sync failed"})
			return
		}
		s.renderSources(w, r, "source_list", sourcesView{Report: &report})
	}
}

func (s *Server) renderSources(w http.ResponseWriter, r *http.Request, name string, view sourcesView) {
	sources, err := s.db.GetAllSources(r.Context(), s.user(r))
	if err != nil {
		slog.Error("Failed to get sources", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	view.Sources = sources
	s.render(w, http.StatusOK, name, view)
}
