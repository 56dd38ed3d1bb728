package taxonomy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrLabelRequired      = errors.New("taxonomy: label is required")
	ErrPromptTextRequired = errors.New("taxonomy: prompt text is required")
	ErrCategoryRequired   = errors.New("taxonomy: category is required")
	ErrItemNotFound       = errors.New("taxonomy: item not found")
	ErrInvalidDirection   = errors.New("taxonomy: unknown direction")
)

// Direction moves an item one slot in the display order.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidDirection, s)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and collapses every run of other characters into "_".
func Slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

// NewItemID derives the id of a newly created item.
func NewItemID(category, label string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d", category, Slug(label), now.UnixMilli())
}

// Upsert inserts a new item (empty id) or replaces the item with the same id.
// New items are appended at the end of the category; edits keep their order.
// An item moved to another category is appended to it and the source
// category is renumbered.
// The returned item carries the assigned id and order.
func Upsert(d Data, it Item, now time.Time) (Data, Item, error) {
	it.Category = strings.TrimSpace(it.Category)
	it.Label = strings.TrimSpace(it.Label)
	it.PromptText = strings.TrimSpace(it.PromptText)
	switch {
	case it.Category == "":
		return d, Item{}, ErrCategoryRequired
	case it.Label == "":
		return d, Item{}, ErrLabelRequired
	case it.PromptText == "":
		return d, Item{}, ErrPromptTextRequired
	}
	it.Tags = cleanTags(it.Tags)

	out := d.Clone()
	moved := false
	if it.ID != "" {
		// An edit may move the item to another category: it leaves the
		// source like a delete and lands at the end of the target.
		for cat := range d {
			if cat == it.Category {
				continue
			}
			if _, ok := d.Find(cat, it.ID); ok {
				var err error
				if out, err = Delete(out, cat, it.ID); err != nil {
					return d, Item{}, err
				}
				moved = true
				break
			}
		}
	}

	items := out[it.Category]
	count := len(items)
	if it.ID != "" {
		for i, existing := range items {
			if existing.ID != it.ID {
				continue
			}
			switch {
			case existing.Order != nil:
				it.Order = OrderOf(*existing.Order)
			case it.Order == nil:
				it.Order = OrderOf(count)
			}
			items[i] = it.Clone()
			out[it.Category] = items
			return out, it, nil
		}
	} else {
		it.ID = NewItemID(it.Category, it.Label, now)
	}
	if it.Order == nil || moved {
		it.Order = OrderOf(count)
	}
	out[it.Category] = append(items, it.Clone())
	return out, it, nil
}

func cleanTags(tags []string) []string {
	out := []string{}
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// Delete removes the item and renumbers the remaining items of its category
// densely in display order.
func Delete(d Data, category, id string) (Data, error) {
	if _, ok := d.Find(category, id); !ok {
		return d, fmt.Errorf("%w: %s/%s", ErrItemNotFound, category, id)
	}
	out := d.Clone()
	sorted := Sorted(out[category])
	kept := make([]Item, 0, len(sorted))
	for _, it := range sorted {
		if it.ID == id {
			continue
		}
		it.Order = OrderOf(len(kept))
		kept = append(kept, it)
	}
	out[category] = kept
	return out, nil
}

// Reorder moves the item at index of the display-ordered category one slot
// and renumbers positionally. The second result is false when the move
// falls outside the list, in which case d is returned untouched.
func Reorder(d Data, category string, index int, dir Direction) (Data, bool) {
	sorted := Sorted(d[category])
	target := index - 1
	if dir == Down {
		target = index + 1
	}
	if index < 0 || index >= len(sorted) || target < 0 || target >= len(sorted) {
		return d, false
	}
	sorted[index], sorted[target] = sorted[target], sorted[index]
	for i := range sorted {
		sorted[i].Order = OrderOf(i)
	}
	out := d.Clone()
	out[category] = sorted
	return out, true
}

// DuplicateLabel picks "<label> Copy", then "<label> Copy 2" and upwards,
// skipping labels already used in the category (case-insensitively).
func DuplicateLabel(d Data, category, label string) string {
	used := make(map[string]bool, len(d[category]))
	for _, it := range d[category] {
		used[strings.ToLower(it.Label)] = true
	}
	base := label + " Copy"
	if !used[strings.ToLower(base)] {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s %d", base, n)
		if !used[strings.ToLower(candidate)] {
			return candidate
		}
	}
}

// DuplicateDraft clones an item as an unsaved draft with no id or order.
func DuplicateDraft(d Data, category, id string) (Item, error) {
	src, ok := d.Find(category, id)
	if !ok {
		return Item{}, fmt.Errorf("%w: %s/%s", ErrItemNotFound, category, id)
	}
	draft := src.Clone()
	draft.ID = ""
	draft.Order = nil
	draft.Label = DuplicateLabel(d, category, src.Label)
	return draft, nil
}
