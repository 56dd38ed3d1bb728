// Package taxonomy models the per-category item lists behind the selection
// dropdowns and the editing rules applied to them.
package taxonomy

import (
	"sort"
	"strings"
)

// MissingOrder is the rank used for items without an assigned order. It
// must exceed any order assigned by the editor so such items sort last.
const MissingOrder = 999

// Item is one selectable value within a category.
type Item struct {
	ID         string   `json:"id"`
	Category   string   `json:"category"`
	Label      string   `json:"label"`
	PromptText string   `json:"prompt_text"`
	Tags       []string `json:"tags"`
	Order      *int     `json:"order,omitempty"`
}

// OrderOf returns a pointer suitable for Item.Order.
func OrderOf(n int) *int {
	return &n
}

// Rank is the display rank of the item.
func (it Item) Rank() int {
	if it.Order == nil {
		return MissingOrder
	}
	return *it.Order
}

func (it Item) Clone() Item {
	out := it
	if it.Tags != nil {
		out.Tags = append([]string(nil), it.Tags...)
	}
	if it.Order != nil {
		out.Order = OrderOf(*it.Order)
	}
	return out
}

func compareItems(a, b Item) int {
	if ra, rb := a.Rank(), b.Rank(); ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	la, lb := strings.ToLower(a.Label), strings.ToLower(b.Label)
	switch {
	case la < lb:
		return -1
	case la > lb:
		return 1
	}
	return strings.Compare(a.Label, b.Label)
}

// Sorted returns a display-ordered copy of items.
func Sorted(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		out = append(out, it.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return compareItems(out[i], out[j]) < 0 })
	return out
}

// Data maps a category id to its items.
type Data map[string][]Item

// Clone deep-copies the data.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for cat, items := range d {
		cp := make([]Item, 0, len(items))
		for _, it := range items {
			cp = append(cp, it.Clone())
		}
		out[cat] = cp
	}
	return out
}

// Items returns the display-ordered items of a category.
func (d Data) Items(category string) []Item {
	return Sorted(d[category])
}

// Find looks up an item by id within a category.
func (d Data) Find(category, id string) (Item, bool) {
	for _, it := range d[category] {
		if it.ID == id {
			return it.Clone(), true
		}
	}
	return Item{}, false
}

// Len counts items across categories.
func (d Data) Len() int {
	n := 0
	for _, items := range d {
		n += len(items)
	}
	return n
}

// Flatten lists every item, categories in the given order first and any
// remaining categories after them sorted by id. Items keep display order.
func (d Data) Flatten(categoryOrder []string) []Item {
	seen := make(map[string]bool, len(d))
	out := make([]Item, 0, d.Len())
	for _, cat := range categoryOrder {
		if seen[cat] {
			continue
		}
		seen[cat] = true
		out = append(out, d.Items(cat)...)
	}
	rest := make([]string, 0)
	for cat := range d {
		if !seen[cat] {
			rest = append(rest, cat)
		}
	}
	sort.Strings(rest)
	for _, cat := range rest {
		out = append(out, d.Items(cat)...)
	}
	return out
}

// Group builds Data from a flat list, each category sorted for display.
// Items without a category are dropped.
func Group(items []Item) Data {
	out := Data{}
	for _, it := range items {
		cat := strings.TrimSpace(it.Category)
		if cat == "" {
			continue
		}
		it.Category = cat
		out[cat] = append(out[cat], it)
	}
	for cat, list := range out {
		out[cat] = Sorted(list)
	}
	return out
}
