package board

// View is an immutable copy of a board, safe to hand to renderers and other
// goroutines.
type View struct {
	Version    uint64          `json:"version"`
	Containers []ContainerView `json:"containers"`
}

// ContainerView is the rendered state of one container.
type ContainerView struct {
	ID      ContainerID `json:"id"`
	Tracked bool        `json:"tracked"`
	Items   []Item      `json:"items"`
}

// Container returns the items of one container, or nil if unknown.
func (v View) Container(id ContainerID) []Item {
	for _, c := range v.Containers {
		if c.ID == id {
			return c.Items
		}
	}
	return nil
}

// IDs returns the item ids of one container in order.
func (v View) IDs(id ContainerID) []string {
	items := v.Container(id)
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

// Find returns an item and its position.
func (v View) Find(itemID string) (Item, Position, bool) {
	for _, c := range v.Containers {
		for i, it := range c.Items {
			if it.ID == itemID {
				return it, Position{Container: c.ID, Index: i}, true
			}
		}
	}
	return Item{}, Position{}, false
}

// Duplicates returns ids that appear more than once across all containers.
// A well-formed board never has any.
func (v View) Duplicates() []string {
	seen := make(map[string]int)
	var dups []string
	for _, c := range v.Containers {
		for _, it := range c.Items {
			seen[it.ID]++
			if seen[it.ID] == 2 {
				dups = append(dups, it.ID)
			}
		}
	}
	return dups
}

// Len returns the total number of items on the board.
func (v View) Len() int {
	n := 0
	for _, c := range v.Containers {
		n += len(c.Items)
	}
	return n
}
