package bankview

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dyluth/lanes/internal/board"
)

// FormatPersonaTable writes the persona catalog as a table.
// Columns: ID, NAME, ICON, MODEL.
func FormatPersonaTable(w io.Writer, personas []board.Persona, instanceName string) {
	if len(personas) == 0 {
		fmt.Fprintf(w, "No personas for instance '%s'\n", instanceName)
		return
	}

	fmt.Fprintf(w, "Personas for instance '%s':\n\n", instanceName)
	fmt.Fprintf(w, "%-16s %-20s %-12s %s\n", "ID", "NAME", "ICON", "MODEL")
	fmt.Fprintf(w, "%-16s %-20s %-12s %s\n", "----------------", "--------------------", "------------", "--------------------")
	for _, p := range personas {
		fmt.Fprintf(w, "%-16s %-20s %-12s %s\n",
			formatField(p.ID, 16),
			formatField(p.Name, 20),
			formatField(p.IconSlug, 12),
			formatField(p.Model, 40),
		)
	}
}

// FormatPersonasJSONL writes one compact JSON object per persona.
func FormatPersonasJSONL(w io.Writer, personas []board.Persona) error {
	enc := json.NewEncoder(w)
	for _, p := range personas {
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("failed to write persona JSON: %w", err)
		}
	}
	return nil
}
