package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knoldeck/internal/domain"
)

const cardColumns = `id, front, back, category, level, tags, notes,
	interval_days, ease_factor, repetitions, total_reviews,
	last_reviewed, next_review, source_id`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// LoadAllCards returns every card of a user in insertion order.
func (db *DB) LoadAllCards(ctx context.Context, userID string) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE user_id = ?
		ORDER BY rowid
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards for user %s: %w", userID, err)
	}
	defer rows.Close()
	return scanCards(rows)
}

// GetCardsBySourceID retrieves all cards imported from a specific source.
func (db *DB) GetCardsBySourceID(ctx context.Context, userID string, sourceID int64) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE user_id = ? AND source_id = ?
		ORDER BY rowid
	`, userID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()
	return scanCards(rows)
}

// FindCard retrieves a single card. It returns ErrNotFound if there is none.
func (db *DB) FindCard(ctx context.Context, userID, id string) (domain.Card, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE user_id = ? AND id = ?
	`, userID, id)

	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Card{}, fmt.Errorf("card %s: %w", id, ErrNotFound)
		}
		return domain.Card{}, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	return card, nil
}

// SaveCard inserts card or overwrites the stored copy.
func (db *DB) SaveCard(ctx context.Context, userID string, card domain.Card) error {
	return saveCard(ctx, db.conn, userID, card)
}

// SaveCards writes all cards in one transaction.
func (db *DB) SaveCards(ctx context.Context, userID string, cards []domain.Card) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range cards {
		if err := saveCard(ctx, tx, userID, c); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cards: %w", err)
	}
	return nil
}

// DeleteCard removes a card and its review history.
func (db *DB) DeleteCard(ctx context.Context, userID, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM review_logs WHERE user_id = ? AND card_id = ?`, userID, id); err != nil {
		return fmt.Errorf("failed to delete review logs of card %s: %w", id, err)
	}
	return tx.Commit()
}

func saveCard(ctx context.Context, ex execer, userID string, card domain.Card) error {
	if card.ID == "" {
		return errors.New("failed to save card: empty id")
	}
	var tags sql.NullString
	if len(card.Tags) > 0 {
		b, err := json.Marshal(card.Tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags of card %s: %w", card.ID, err)
		}
		tags = sql.NullString{String: string(b), Valid: true}
	}
	var sourceID sql.NullInt64
	if card.SourceID != 0 {
		sourceID = sql.NullInt64{Int64: card.SourceID, Valid: true}
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO cards (user_id, `+cardColumns+`, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, id) DO UPDATE SET
			front = excluded.front,
			back = excluded.back,
			category = excluded.category,
			level = excluded.level,
			tags = excluded.tags,
			notes = excluded.notes,
			interval_days = excluded.interval_days,
			ease_factor = excluded.ease_factor,
			repetitions = excluded.repetitions,
			total_reviews = excluded.total_reviews,
			last_reviewed = excluded.last_reviewed,
			next_review = excluded.next_review,
			source_id = excluded.source_id
	`,
		userID,
		card.ID,
		card.Front,
		card.Back,
		card.Category,
		card.Level,
		tags,
		card.Notes,
		card.Interval,
		card.EaseFactor,
		card.Repetitions,
		card.TotalReviews,
		nullTime(card.LastReviewed),
		formatTime(card.NextReview),
		sourceID,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save card %s: %w", card.ID, err)
	}
	return nil
}

func scanCards(rows *sql.Rows) ([]domain.Card, error) {
	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func scanCard(s scanner) (domain.Card, error) {
	var (
		c            domain.Card
		tags         sql.NullString
		interval     sql.NullInt64
		ease         sql.NullFloat64
		reps         sql.NullInt64
		lastReviewed sql.NullString
		nextReview   string
		sourceID     sql.NullInt64
	)
	err := s.Scan(
		&c.ID,
		&c.Front,
		&c.Back,
		&c.Category,
		&c.Level,
		&tags,
		&c.Notes,
		&interval,
		&ease,
		&reps,
		&c.TotalReviews,
		&lastReviewed,
		&nextReview,
		&sourceID,
	)
	if err != nil {
		return domain.Card{}, err
	}

	// NULL scheduling columns stay zero; sm2 treats zero as the new-card default.
	c.Interval = int(interval.Int64)
	c.EaseFactor = ease.Float64
	c.Repetitions = int(reps.Int64)
	c.SourceID = sourceID.Int64

	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &c.Tags); err != nil {
			return domain.Card{}, fmt.Errorf("failed to decode tags of card %s: %w", c.ID, err)
		}
	}
	if c.LastReviewed, err = parseNullTime(lastReviewed); err != nil {
		return domain.Card{}, err
	}
	if c.NextReview, err = parseTime(nextReview); err != nil {
		return domain.Card{}, err
	}
	return c, nil
}
