package domain

import "time"

// Card represents a single flashcard and its scheduling state.
type Card struct {
	ID    string
	Front string
	Back  string

	// Classification metadata. The scheduler never reads these; they only
	// feed due-set filters.
	Category string
	Level    string
	Tags     []string
	Notes    string

	Interval     int     // days until the next due date
	EaseFactor   float64 // interval growth multiplier, never below 1.3 once scheduled
	Repetitions  int     // consecutive reviews since the last "again"
	TotalReviews int

	LastReviewed *time.Time // nil until the first review
	NextReview   time.Time

	// SourceID links a card imported from a deck source. Zero for cards
	// added by hand.
	SourceID int64
}

// NewCard returns a card that is immediately due.
func NewCard(id, front, back string, now time.Time) Card {
	return Card{
		ID:         id,
		Front:      front,
		Back:       back,
		Interval:   1,
		EaseFactor: 2.5,
		NextReview: now.UTC(),
	}
}

// IsNew reports whether the card has never been reviewed.
func (c Card) IsNew() bool {
	return c.LastReviewed == nil
}

// HasTag reports whether the card carries tag.
func (c Card) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no memory with c.
func (c Card) Clone() Card {
	out := c
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	if c.LastReviewed != nil {
		t := *c.LastReviewed
		out.LastReviewed = &t
	}
	return out
}

// ReviewLog records a single applied rating.
type ReviewLog struct {
	CardID     string
	SessionID  string
	Rating     Rating
	ReviewedAt time.Time
	Interval   int
	EaseFactor float64
}
