package persona_test

import (
	"errors"
	"testing"

	"github.com/lumate/voicecoach/internal/model/persona"
)

func TestResolveInRange(t *testing.T) {
	catalog := persona.NewMemoryCatalog(persona.Seed())

	p, err := catalog.Resolve(0)
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if p.Name != "Scott" {
		t.Fatalf("unexpected first persona: got %s", p.Name)
	}
}

func TestResolveOutOfRange(t *testing.T) {
	catalog := persona.NewMemoryCatalog(persona.Seed())

	for _, index := range []int{-1, len(persona.Seed()), 5} {
		if _, err := catalog.Resolve(index); !errors.Is(err, persona.ErrNotFound) {
			t.Fatalf("Resolve(%d): expected ErrNotFound, got %v", index, err)
		}
	}
}

func TestParseIndex(t *testing.T) {
	index, err := persona.ParseIndex(" 2 ")
	if err != nil {
		t.Fatalf("ParseIndex err: %v", err)
	}
	if index != 2 {
		t.Fatalf("unexpected index: got %d", index)
	}

	if _, err := persona.ParseIndex("two"); !errors.Is(err, persona.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-numeric token, got %v", err)
	}
}

func TestListReturnsCopy(t *testing.T) {
	catalog := persona.NewMemoryCatalog(persona.Seed())

	list := catalog.List()
	list[0].Name = "mutated"

	p, err := catalog.Resolve(0)
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if p.Name == "mutated" {
		t.Fatal("List must not expose internal catalog state")
	}
}
