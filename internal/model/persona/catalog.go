package persona

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNotFound is returned when an index does not address a catalog entry.
var ErrNotFound = errors.New("persona not found")

// Catalog exposes persona retrieval for the orchestrator and handlers.
// Personas are addressed by their position in the list; the catalog is
// fixed at startup and never mutated afterwards.
type Catalog interface {
	List() []Persona
	Resolve(index int) (Persona, error)
}

// MemoryCatalog implements Catalog with an in-memory slice.
type MemoryCatalog struct {
	items []Persona
}

// NewMemoryCatalog returns a MemoryCatalog preloaded with the supplied personas.
func NewMemoryCatalog(items []Persona) *MemoryCatalog {
	return &MemoryCatalog{items: append([]Persona(nil), items...)}
}

// List returns a copy of the catalog entries.
func (c *MemoryCatalog) List() []Persona {
	return append([]Persona(nil), c.items...)
}

// Resolve returns the persona at the given position.
func (c *MemoryCatalog) Resolve(index int) (Persona, error) {
	if index < 0 || index >= len(c.items) {
		return Persona{}, ErrNotFound
	}
	return c.items[index], nil
}

// ParseIndex converts a raw command token into a catalog index. Non-numeric
// tokens are reported as ErrNotFound, same as out-of-range values.
func ParseIndex(token string) (int, error) {
	index, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil {
		return 0, ErrNotFound
	}
	return index, nil
}
