package boardstore

import (
	"context"
	"fmt"

	"github.com/dyluth/lanes/internal/board"
	boarderrors "github.com/dyluth/lanes/internal/errors"
	"github.com/redis/go-redis/v9"
)

// UpsertPersona writes a persona to the catalog, replacing any persona with
// the same id.
func (c *Client) UpsertPersona(ctx context.Context, p board.Persona) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid persona: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, PersonaKey(c.instanceName, p.ID), PersonaToHash(p))
	pipe.SAdd(ctx, PersonasKey(c.instanceName), p.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write persona to Redis: %w", err)
	}
	return nil
}

// GetPersona retrieves a persona by id. A missing persona is a NOT_FOUND
// BoardError.
func (c *Client) GetPersona(ctx context.Context, personaID string) (board.Persona, error) {
	hash, err := c.rdb.HGetAll(ctx, PersonaKey(c.instanceName, personaID)).Result()
	if err != nil {
		return board.Persona{}, fmt.Errorf("failed to read persona from Redis: %w", err)
	}
	if len(hash) == 0 {
		nf := boarderrors.NewPersonaNotFound(personaID)
		nf.Err = redis.Nil
		return board.Persona{}, nf
	}
	return HashToPersona(hash)
}

// ListPersonas returns the catalog ordered by name. Ids whose hash is gone
// are skipped.
func (c *Client) ListPersonas(ctx context.Context) ([]board.Persona, error) {
	ids, err := c.rdb.SMembers(ctx, PersonasKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read persona ids: %w", err)
	}

	personas := make([]board.Persona, 0, len(ids))
	if len(ids) == 0 {
		return personas, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, PersonaKey(c.instanceName, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read personas from Redis: %w", err)
	}

	for _, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}
		p, err := HashToPersona(cmd.Val())
		if err != nil {
			return nil, err
		}
		personas = append(personas, p)
	}
	board.SortPersonas(personas)
	return personas, nil
}
