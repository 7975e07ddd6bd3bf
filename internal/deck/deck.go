// Package deck holds a learner's cards in memory, keyed by ID.
package deck

import "github.com/conorfennell/knoldeck/internal/domain"

// Deck is an ordered card collection with lookup by ID. It is not safe for
// concurrent use.
type Deck struct {
	cards []domain.Card
	index map[string]int
}

// New builds a deck from cards. A later card replaces an earlier one with the
// same ID.
func New(cards []domain.Card) *Deck {
	d := &Deck{index: make(map[string]int, len(cards))}
	for _, c := range cards {
		d.Put(c)
	}
	return d
}

// All returns a copy of the cards in insertion order.
func (d *Deck) All() []domain.Card {
	out := make([]domain.Card, len(d.cards))
	for i, c := range d.cards {
		out[i] = c.Clone()
	}
	return out
}

// Get looks up a card by ID.
func (d *Deck) Get(id string) (domain.Card, bool) {
	i, ok := d.index[id]
	if !ok {
		return domain.Card{}, false
	}
	return d.cards[i].Clone(), true
}

// Put inserts card, or replaces the card with the same ID in place.
func (d *Deck) Put(card domain.Card) {
	if i, ok := d.index[card.ID]; ok {
		d.cards[i] = card.Clone()
		return
	}
	d.index[card.ID] = len(d.cards)
	d.cards = append(d.cards, card.Clone())
}

// Len returns the number of cards.
func (d *Deck) Len() int {
	return len(d.cards)
}
