package knol

import (
	"testing"

	"github.com/conorfennell/knoldeck/internal/domain"
)

func TestNormalize(t *testing.T) {
	card := domain.Card{
		Front: "  What   is HTMX? \r\n",
		Back:  "A library\r\nfor  AJAX.",
		Notes: "Web Development",
	}
	expected := "what is htmx?\na library\nfor ajax.\nweb development"
	if got := Normalize(card); got != expected {
		t.Errorf("Normalize() = %q, want %q", got, expected)
	}
}

func TestHash(t *testing.T) {
	t.Run("known value", func(t *testing.T) {
		card := domain.Card{Front: "Q", Back: "A", Notes: "C"}
		// first half of sha256("q\na\nc")
		want := "eb2456c1ee4f36305069dd0f63a30e92"
		if got := Hash(card); got != want {
			t.Errorf("Hash() = %q, want %q", got, want)
		}
	})

	t.Run("empty notes", func(t *testing.T) {
		card := domain.Card{Front: "Hola", Back: "Hello"}
		want := "c7bc515b7775732517fcea8c78b9ea2e"
		if got := Hash(card); got != want {
			t.Errorf("Hash() = %q, want %q", got, want)
		}
	})

	t.Run("case and spacing do not matter", func(t *testing.T) {
		a := domain.Card{Front: "  what is go? ", Back: "A programming language."}
		b := domain.Card{Front: "What Is  Go?", Back: "a programming language."}
		if Hash(a) != Hash(b) {
			t.Error("expected equal hashes after normalization")
		}
	})

	t.Run("metadata and scheduling do not matter", func(t *testing.T) {
		a := domain.Card{Front: "ser", Back: "to be"}
		b := domain.Card{Front: "ser", Back: "to be", Category: "verbs", Tags: []string{"irregular"}, Interval: 6}
		if Hash(a) != Hash(b) {
			t.Error("expected metadata to be ignored")
		}
	})

	t.Run("fields are separated", func(t *testing.T) {
		a := domain.Card{Front: "ab", Back: "c"}
		b := domain.Card{Front: "a", Back: "bc"}
		if Hash(a) == Hash(b) {
			t.Error("expected different hashes when text moves between fields")
		}
	})
}
