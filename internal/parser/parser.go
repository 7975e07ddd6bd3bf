// Package parser reads cards from the markdown deck format:
//
//	Category: verbs
//	Level: A2
//	Tags: irregular, past
//	Q: front text, may continue
//	on following lines
//	A: back text
//	C: optional notes
//	---
//
// Cards are separated by "---" or by the next "Q:" line.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/knoldeck/internal/domain"
)

// Entry is one card as written in a deck file, before it has an identity or
// scheduling state.
type Entry struct {
	Front    string
	Back     string
	Notes    string
	Category string
	Level    string
	Tags     []string
}

type field int

const (
	none field = iota
	front
	back
	notes
)

var blockPrefixes = map[string]field{
	"Q:": front,
	"A:": back,
	"C:": notes,
}

// ParseFile reads a deck file from path and extracts all entries.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads a deck from r. Entries without a front are dropped.
func Parse(r io.Reader) ([]Entry, error) {
	p := &deckParser{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line(scanner.Text())
	}
	p.finish()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return p.entries, nil
}

type deckParser struct {
	entries []Entry
	cur     Entry
	in      field
	block   []string
}

func (p *deckParser) line(line string) {
	if strings.TrimSpace(line) == "---" {
		p.finish()
		return
	}

	for prefix, f := range blockPrefixes {
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		p.flush()
		if f == front && p.cur.Front != "" {
			p.finish()
		}
		p.in = f
		p.block = append(p.block, strings.TrimPrefix(line[len(prefix):], " "))
		return
	}

	if p.in == none {
		p.metadata(line)
		return
	}
	p.block = append(p.block, line)
}

// metadata handles the single-line headers that may precede "Q:".
func (p *deckParser) metadata(line string) {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return
	}
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "category":
		p.cur.Category = value
	case "level":
		p.cur.Level = value
	case "tags":
		p.cur.Tags = splitTags(value)
	}
}

func (p *deckParser) flush() {
	if len(p.block) == 0 {
		return
	}
	content := strings.TrimRight(strings.Join(p.block, "\n"), "\n ")
	switch p.in {
	case front:
		p.cur.Front = content
	case back:
		p.cur.Back = content
	case notes:
		p.cur.Notes = content
	}
	p.block = nil
}

func (p *deckParser) finish() {
	p.flush()
	if p.cur.Front != "" {
		p.entries = append(p.entries, p.cur)
	}
	p.cur = Entry{}
	p.in = none
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Apply copies the entry's content onto card, leaving identity and scheduling
// state alone.
func (e Entry) Apply(card *domain.Card) {
	card.Front = e.Front
	card.Back = e.Back
	card.Notes = e.Notes
	card.Category = e.Category
	card.Level = e.Level
	card.Tags = append([]string(nil), e.Tags...)
}
