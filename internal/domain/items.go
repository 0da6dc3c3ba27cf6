package domain

import (
	"fmt"
	"strings"
)

// MoveDirection selects which neighbour an item swaps with.
type MoveDirection string

const (
	MoveUp   MoveDirection = "up"
	MoveDown MoveDirection = "down"
)

// ParseMoveDirection accepts "up" or "down" in any case.
func ParseMoveDirection(raw string) (MoveDirection, error) {
	switch dir := MoveDirection(strings.ToLower(strings.TrimSpace(raw))); dir {
	case MoveUp, MoveDown:
		return dir, nil
	}
	return "", fmt.Errorf("unknown move direction %q", raw)
}

// MoveItem swaps the item at index with its neighbour in the given direction. The input
// slice is never modified; when the swap target is out of range the returned slice is
// an unchanged copy and moved is false.
func MoveItem(items []CatalogItem, index int, direction MoveDirection) (out []CatalogItem, moved bool) {
	out = make([]CatalogItem, len(items))
	copy(out, items)

	target := index + 1
	if direction == MoveUp {
		target = index - 1
	}
	if index < 0 || index >= len(out) || target < 0 || target >= len(out) {
		return out, false
	}
	out[index], out[target] = out[target], out[index]
	return out, true
}

// CategoryGroup is a display section: a category heading and its items in sequence order.
type CategoryGroup struct {
	Category string
	Items    []CatalogItem
}

// GroupByCategory buckets items by category in first-seen order. Items without a
// category are collected under an empty heading at the position they first appear.
func GroupByCategory(items []CatalogItem) []CategoryGroup {
	groups := make([]CategoryGroup, 0)
	index := make(map[string]int)
	for _, item := range items {
		key := strings.TrimSpace(item.Category)
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, CategoryGroup{Category: key})
		}
		groups[pos].Items = append(groups[pos].Items, item)
	}
	return groups
}

// Categories lists the distinct non-empty categories in first-seen order.
func Categories(items []CatalogItem) []string {
	var out []string
	for _, group := range GroupByCategory(items) {
		if group.Category != "" {
			out = append(out, group.Category)
		}
	}
	return out
}

// ItemError reports a problem with a specific item in a catalog's sequence.
type ItemError struct {
	Index  int
	Reason string
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("items[%d]: %s", e.Index, e.Reason)
}

// ValidateItems checks required names and id uniqueness within the sequence.
// Items without an id are accepted; callers assign one before persisting.
func ValidateItems(items []CatalogItem) error {
	seen := make(map[string]int, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return &ItemError{Index: i, Reason: "name is required"}
		}
		if item.ID == "" {
			continue
		}
		if first, ok := seen[item.ID]; ok {
			return &ItemError{Index: i, Reason: fmt.Sprintf("id %q duplicates items[%d]", item.ID, first)}
		}
		seen[item.ID] = i
	}
	return nil
}
