package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/dyluth/lanes/internal/board"
	boarderrors "github.com/dyluth/lanes/internal/errors"
)

// UpsertPersona writes a persona to the catalog, replacing any persona with
// the same id.
func (s *Store) UpsertPersona(ctx context.Context, p board.Persona) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid persona: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO personas (id, name, icon_slug, model) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  name = excluded.name,
		  icon_slug = excluded.icon_slug,
		  model = excluded.model
	`, p.ID, p.Name, p.IconSlug, p.Model)
	if err != nil {
		return fmt.Errorf("failed to write persona: %w", err)
	}
	return nil
}

// GetPersona retrieves a persona by id.
func (s *Store) GetPersona(ctx context.Context, personaID string) (board.Persona, error) {
	var p board.Persona
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, icon_slug, model FROM personas WHERE id = ?
	`, personaID).Scan(&p.ID, &p.Name, &p.IconSlug, &p.Model)
	if stderrors.Is(err, sql.ErrNoRows) {
		return board.Persona{}, boarderrors.NewPersonaNotFound(personaID)
	}
	if err != nil {
		return board.Persona{}, fmt.Errorf("failed to read persona: %w", err)
	}
	return p, nil
}

// ListPersonas returns the catalog ordered by name.
func (s *Store) ListPersonas(ctx context.Context) ([]board.Persona, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, icon_slug, model FROM personas ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	defer rows.Close()

	personas := []board.Persona{}
	for rows.Next() {
		var p board.Persona
		if err := rows.Scan(&p.ID, &p.Name, &p.IconSlug, &p.Model); err != nil {
			return nil, fmt.Errorf("failed to scan persona: %w", err)
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}
