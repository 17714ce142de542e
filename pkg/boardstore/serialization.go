package boardstore

import (
	"fmt"
	"strconv"

	"github.com/dyluth/lanes/internal/board"
)

// Serialization helpers for converting between items and Redis hashes.
//
// Only store-owned fields are written. Annotation and deposit state are
// client-local and never reach Redis.

// ItemToHash converts an item to its Redis hash form.
func ItemToHash(item board.Item, createdAtMs int64) map[string]interface{} {
	return map[string]interface{}{
		"id":            item.ID,
		"origin_source": item.OriginSource,
		"origin_handle": item.OriginHandle,
		"display_time":  item.DisplayTime,
		"content":       item.Content,
		"created_at_ms": createdAtMs,
	}
}

// HashToItem converts a Redis hash back to an item and its creation time.
func HashToItem(hash map[string]string) (board.Item, int64, error) {
	id := hash["id"]
	if id == "" {
		return board.Item{}, 0, fmt.Errorf("item hash has no id")
	}

	var createdAtMs int64
	if raw := hash["created_at_ms"]; raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return board.Item{}, 0, fmt.Errorf("invalid created_at_ms field: %w", err)
		}
		createdAtMs = v
	}

	return board.Item{
		ID:           id,
		OriginSource: hash["origin_source"],
		OriginHandle: hash["origin_handle"],
		DisplayTime:  hash["display_time"],
		Content:      hash["content"],
	}, createdAtMs, nil
}

// PersonaToHash converts a persona to its Redis hash form.
func PersonaToHash(p board.Persona) map[string]interface{} {
	return map[string]interface{}{
		"id":        p.ID,
		"name":      p.Name,
		"icon_slug": p.IconSlug,
		"model":     p.Model,
	}
}

// HashToPersona converts a Redis hash back to a persona.
func HashToPersona(hash map[string]string) (board.Persona, error) {
	p := board.Persona{
		ID:       hash["id"],
		Name:     hash["name"],
		IconSlug: hash["icon_slug"],
		Model:    hash["model"],
	}
	if err := p.Validate(); err != nil {
		return board.Persona{}, fmt.Errorf("invalid persona hash: %w", err)
	}
	return p, nil
}
