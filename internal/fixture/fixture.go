// Package fixture loads YAML seed files into a durable store.
package fixture

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/lanes/internal/board"
	"github.com/dyluth/lanes/internal/timespec"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Fixture is the on-disk seed format.
//
//	items:
//	  - source: wire
//	    handle: "@ap"
//	    time: "09:41"
//	    content: Rates held steady
//	bank: [item-1]
//	personas:
//	  - id: analyst
//	    name: Analyst
//	    icon_slug: chart
//	    model: gpt-4o-mini
type Fixture struct {
	Items    []Entry         `yaml:"items"`
	Bank     []string        `yaml:"bank"`
	Personas []board.Persona `yaml:"personas"`
}

// Entry is one seeded item. ID is generated when empty. CreatedAt is an
// RFC3339 time or an age such as "10m"; when empty, entries are spaced so
// file order is kept (last entry newest).
type Entry struct {
	board.Item `yaml:",inline"`
	CreatedAt  string `yaml:"created_at"`
}

// createdAt resolves CreatedAt against now. ok is false when it is unset.
func (e Entry) createdAt(now time.Time) (t time.Time, ok bool, err error) {
	if e.CreatedAt == "" {
		return time.Time{}, false, nil
	}
	t, err = timespec.Parse(e.CreatedAt, now)
	return t, err == nil, err
}

// Load reads and validates a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes fixture YAML, assigns missing ids and validates references.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture YAML: %w", err)
	}

	seen := make(map[string]bool, len(f.Items))
	for i := range f.Items {
		if f.Items[i].ID == "" {
			f.Items[i].ID = uuid.New().String()
		}
		id := f.Items[i].ID
		if seen[id] {
			return nil, fmt.Errorf("items[%d]: duplicate id '%s'", i, id)
		}
		seen[id] = true
		if _, _, err := f.Items[i].createdAt(time.Now()); err != nil {
			return nil, fmt.Errorf("items[%d].created_at: %w", i, err)
		}
	}

	banked := make(map[string]bool, len(f.Bank))
	for i, id := range f.Bank {
		if !seen[id] {
			return nil, fmt.Errorf("bank[%d]: unknown item '%s'", i, id)
		}
		if banked[id] {
			return nil, fmt.Errorf("bank[%d]: '%s' listed twice", i, id)
		}
		banked[id] = true
	}

	personas := make(map[string]bool, len(f.Personas))
	for i := range f.Personas {
		if err := f.Personas[i].Validate(); err != nil {
			return nil, fmt.Errorf("personas[%d]: %w", i, err)
		}
		id := f.Personas[i].ID
		if personas[id] {
			return nil, fmt.Errorf("personas[%d]: duplicate id '%s'", i, id)
		}
		personas[id] = true
	}

	return &f, nil
}

// Store is the subset of a durable store needed to seed it.
type Store interface {
	CreateItem(ctx context.Context, item board.Item, createdAt time.Time) error
	InsertBankMembership(ctx context.Context, itemID string) (bool, error)
	UpsertPersona(ctx context.Context, p board.Persona) error
}

// Result counts what a seed run wrote.
type Result struct {
	Items    int
	Banked   int
	Personas int
}

// Seed writes every persona and item, then the bank memberships in order. Relative
// created_at values and the default spacing are resolved against now.
func Seed(ctx context.Context, store Store, f *Fixture, now time.Time) (Result, error) {
	var res Result
	for _, p := range f.Personas {
		if err := store.UpsertPersona(ctx, p); err != nil {
			return res, fmt.Errorf("failed to seed persona '%s': %w", p.ID, err)
		}
		res.Personas++
	}

	n := len(f.Items)
	for i, entry := range f.Items {
		createdAt, ok, err := entry.createdAt(now)
		if err != nil {
			return res, fmt.Errorf("item '%s': %w", entry.ID, err)
		}
		if !ok {
			createdAt = now.Add(-time.Duration(n-1-i) * time.Second)
		}
		if err := store.CreateItem(ctx, entry.Item, createdAt); err != nil {
			return res, fmt.Errorf("failed to seed item '%s': %w", entry.ID, err)
		}
		res.Items++
	}

	for _, id := range f.Bank {
		inserted, err := store.InsertBankMembership(ctx, id)
		if err != nil {
			return res, fmt.Errorf("failed to bank item '%s': %w", id, err)
		}
		if inserted {
			res.Banked++
		}
	}

	return res, nil
}
