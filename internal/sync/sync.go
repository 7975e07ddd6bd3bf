// Package sync imports cards from a learner's deck sources into storage.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/conorfennell/knoldeck/internal/clock"
	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/gitsource"
	"github.com/conorfennell/knoldeck/internal/knol"
	"github.com/conorfennell/knoldeck/internal/parser"
	"github.com/conorfennell/knoldeck/internal/storage"
)

// Report counts what a sync changed.
type Report struct {
	Sources int
	Added   int
	Updated int
	Removed int
	Errors  []error
}

// Err joins every error met during the sync, or returns nil.
func (r Report) Err() error {
	return errors.Join(r.Errors...)
}

func (r *Report) add(o Report) {
	r.Sources += o.Sources
	r.Added += o.Added
	r.Updated += o.Updated
	r.Removed += o.Removed
	r.Errors = append(r.Errors, o.Errors...)
}

type Option func(*Syncer)

func WithClock(c clock.Clock) Option {
	return func(s *Syncer) { s.clock = c }
}

// Syncer reconciles sources with the cards stored for them.
type Syncer struct {
	db       *storage.DB
	reposDir string
	clock    clock.Clock
}

// New returns a Syncer that checks git sources out under reposDir.
func New(db *storage.DB, reposDir string, opts ...Option) *Syncer {
	s := &Syncer{db: db, reposDir: reposDir, clock: clock.System{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reconciles every source of the learner. Per-source problems are
// collected in the report; the returned error is for failures that stop the
// whole run.
func (s *Syncer) Run(ctx context.Context, userID string) (Report, error) {
	slog.Info("Starting sync", "user", userID)
	sources, err := s.db.GetAllSources(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to get sources: %w", err)
	}
	if len(sources) == 0 {
		slog.Info("No sources configured", "user", userID)
		return Report{}, nil
	}

	var report Report
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.add(s.Source(ctx, userID, src))
	}

	slog.Info("Sync complete",
		"user", userID,
		"sources", report.Sources,
		"added", report.Added,
		"updated", report.Updated,
		"removed", report.Removed,
		"errors", len(report.Errors),
	)
	return report, nil
}

// Source reconciles a single source.
func (s *Syncer) Source(ctx context.Context, userID string, src storage.Source) Report {
	report := Report{Sources: 1}
	dir := src.Path

	if src.Type == storage.SourceGit {
		local, err := gitsource.LocalPath(s.reposDir, src.Path)
		if err != nil {
			report.Errors = append(report.Errors, err)
			return report
		}
		if err := gitsource.Sync(ctx, src.Path, local); err != nil {
			slog.Error("Failed to sync git source", "url", src.Path, "error", err)
			report.Errors = append(report.Errors, err)
			return report
		}
		dir = local
	}

	entries, err := scan(dir)
	if err != nil {
		slog.Error("Failed to scan source", "path", dir, "error", err)
		report.Errors = append(report.Errors, err)
		// Missing cards may only be unreadable, so nothing is removed.
		if len(entries) == 0 {
			return report
		}
	}
	canRemove := err == nil

	now := s.clock.Now()
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		card := domain.Card{Front: e.Front, Back: e.Back, Notes: e.Notes}
		id := knol.Hash(card)
		if seen[id] {
			continue
		}
		seen[id] = true

		changed, added, err := s.upsert(ctx, userID, src.ID, id, e, now)
		switch {
		case err != nil:
			report.Errors = append(report.Errors, err)
		case added:
			report.Added++
		case changed:
			report.Updated++
		}
	}

	if canRemove {
		stored, err := s.db.GetCardsBySourceID(ctx, userID, src.ID)
		if err != nil {
			report.Errors = append(report.Errors, err)
			return report
		}
		for _, c := range stored {
			if seen[c.ID] {
				continue
			}
			if err := s.db.DeleteCard(ctx, userID, c.ID); err != nil {
				slog.Warn("Failed to delete orphaned card", "id", c.ID, "error", err)
				report.Errors = append(report.Errors, err)
				continue
			}
			report.Removed++
		}
	}

	if err := s.db.UpdateSourceLastScanned(ctx, src.ID, now); err != nil {
		slog.Warn("Failed to update last scanned", "source_id", src.ID, "error", err)
	}
	slog.Info("Source reconciled",
		"path", src.Path,
		"cards", len(seen),
		"added", report.Added,
		"updated", report.Updated,
		"removed", report.Removed,
	)
	return report
}

// upsert stores a parsed entry. Scheduling state of an existing card is left
// untouched.
func (s *Syncer) upsert(ctx context.Context, userID string, sourceID int64, id string, e parser.Entry, now time.Time) (changed, added bool, err error) {
	existing, err := s.db.FindCard(ctx, userID, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		card := domain.NewCard(id, e.Front, e.Back, now)
		e.Apply(&card)
		card.SourceID = sourceID
		if err := s.db.SaveCard(ctx, userID, card); err != nil {
			return false, false, fmt.Errorf("failed to insert card %s: %w", id, err)
		}
		return true, true, nil
	case err != nil:
		return false, false, err
	}

	updated := existing.Clone()
	e.Apply(&updated)
	if updated.SourceID == 0 {
		updated.SourceID = sourceID
	}
	if sameContent(existing, updated) {
		return false, false, nil
	}
	if err := s.db.SaveCard(ctx, userID, updated); err != nil {
		return false, false, fmt.Errorf("failed to update card %s: %w", id, err)
	}
	return true, false, nil
}

func sameContent(a, b domain.Card) bool {
	return a.Front == b.Front && a.Back == b.Back && a.Notes == b.Notes &&
		a.Category == b.Category && a.Level == b.Level &&
		slices.Equal(a.Tags, b.Tags) && a.SourceID == b.SourceID
}

// scan parses every markdown file under dir. Files that fail to parse are
// reported but do not stop the walk.
func scan(dir string) ([]parser.Entry, error) {
	var entries []parser.Entry
	var errs []error
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			return nil
		}
		fileEntries, err := parser.ParseFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("parsing %s: %w", path, err))
			return nil
		}
		entries = append(entries, fileEntries...)
		return nil
	})
	if walkErr != nil {
		errs = append(errs, fmt.Errorf("walking %s: %w", dir, walkErr))
	}
	return entries, errors.Join(errs...)
}

// Classify decides whether a user-supplied path names a local directory or a
// git repository that can be checked out under the Syncer's repos directory,
// returning the path to store.
func (s *Syncer) Classify(path string) (string, string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", "", errors.New("source path cannot be empty")
	}
	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return "", "", fmt.Errorf("%s is not a directory", path)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", "", err
		}
		return abs, storage.SourceLocal, nil
	}
	if _, err := gitsource.LocalPath(s.reposDir, path); err != nil {
		return "", "", fmt.Errorf("%s is neither a directory nor a git URL", path)
	}
	return path, storage.SourceGit, nil
}
