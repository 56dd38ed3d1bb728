// Package prompt turns category selections and consistency toggles into the
// ordered clauses of an image-generation prompt.
package prompt

import (
	"errors"
	"fmt"

	"promptbuilder/internal/catalog"
	"promptbuilder/internal/taxonomy"
)

// RemoveID is the wire id of the remove marker.
const RemoveID = "__remove__"

var (
	ErrNotRemovable    = errors.New("prompt: category cannot be removed")
	ErrUnknownCategory = errors.New("prompt: unknown category")
	ErrUnknownItem     = errors.New("prompt: unknown item")
)

// Kind is what a selection asks for.
type Kind string

const (
	KindKeep   Kind = "keep"
	KindChange Kind = "change"
	KindRemove Kind = "remove"
)

// Selection is the choice made for one category. A change carries one or
// more items.
type Selection struct {
	Kind  Kind            `json:"kind"`
	Items []taxonomy.Item `json:"items,omitempty"`
}

func Change(items ...taxonomy.Item) Selection {
	return Selection{Kind: KindChange, Items: items}
}

func Remove() Selection {
	return Selection{Kind: KindRemove}
}

func (s Selection) equal(o Selection) bool {
	if s.Kind != o.Kind || len(s.Items) != len(o.Items) {
		return false
	}
	for i := range s.Items {
		if s.Items[i].ID != o.Items[i].ID || s.Items[i].PromptText != o.Items[i].PromptText {
			return false
		}
	}
	return true
}

// Selections maps a category id to its selection. Absent means keep.
type Selections map[string]Selection

func (s Selections) Clone() Selections {
	out := make(Selections, len(s))
	for k, v := range s {
		v.Items = append([]taxonomy.Item(nil), v.Items...)
		out[k] = v
	}
	return out
}

// Validate checks categories exist and remove markers target removable ones.
func (s Selections) Validate(cat *catalog.Catalog) error {
	for id, sel := range s {
		if err := validateOne(cat, id, sel); err != nil {
			return err
		}
	}
	return nil
}

func validateOne(cat *catalog.Catalog, id string, sel Selection) error {
	if _, ok := cat.Lookup(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, id)
	}
	switch sel.Kind {
	case KindRemove:
		if !cat.IsRemovable(id) {
			return fmt.Errorf("%w: %s", ErrNotRemovable, id)
		}
	case KindChange:
		if len(sel.Items) == 0 {
			return fmt.Errorf("prompt: change for %s has no items", id)
		}
	case KindKeep, "":
	default:
		return fmt.Errorf("prompt: unknown selection kind %q", sel.Kind)
	}
	return nil
}

// Resolve maps category ids to chosen item ids against loaded taxonomy data.
// A single RemoveID entry selects the remove marker; an empty list keeps.
func Resolve(cat *catalog.Catalog, data taxonomy.Data, choices map[string][]string) (Selections, error) {
	out := Selections{}
	for category, ids := range choices {
		if _, ok := cat.Lookup(category); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
		}
		if len(ids) == 0 {
			continue
		}
		if len(ids) == 1 && ids[0] == RemoveID {
			sel := Remove()
			if err := validateOne(cat, category, sel); err != nil {
				return nil, err
			}
			out[category] = sel
			continue
		}
		items := make([]taxonomy.Item, 0, len(ids))
		for _, id := range ids {
			it, ok := data.Find(category, id)
			if !ok {
				return nil, fmt.Errorf("%w: %s/%s", ErrUnknownItem, category, id)
			}
			items = append(items, it)
		}
		out[category] = Change(items...)
	}
	return out, nil
}
