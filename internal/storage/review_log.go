package storage

import (
	"context"
	"fmt"

	"github.com/conorfennell/knoldeck/internal/domain"
)

// AppendReviewLog records an applied rating.
func (db *DB) AppendReviewLog(ctx context.Context, userID string, log domain.ReviewLog) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO review_logs (user_id, card_id, session_id, rating, reviewed_at, interval_days, ease_factor)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		userID,
		log.CardID,
		log.SessionID,
		int(log.Rating),
		formatTime(log.ReviewedAt),
		log.Interval,
		log.EaseFactor,
	)
	if err != nil {
		return fmt.Errorf("failed to append review log for card %s: %w", log.CardID, err)
	}
	return nil
}

// ReviewLogs returns the review history of a card, oldest first.
func (db *DB) ReviewLogs(ctx context.Context, userID, cardID string) ([]domain.ReviewLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT card_id, session_id, rating, reviewed_at, interval_days, ease_factor
		FROM review_logs WHERE user_id = ? AND card_id = ?
		ORDER BY id
	`, userID, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review logs for card %s: %w", cardID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var (
			l          domain.ReviewLog
			rating     int
			reviewedAt string
		)
		if err := rows.Scan(&l.CardID, &l.SessionID, &rating, &reviewedAt, &l.Interval, &l.EaseFactor); err != nil {
			return nil, fmt.Errorf("failed to scan review log row: %w", err)
		}
		l.Rating = domain.Rating(rating)
		if l.ReviewedAt, err = parseTime(reviewedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
