// Package catalog holds the fixed, ordered set of visual categories that
// selections, prompts, taxonomy data and image analysis are keyed by.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultCatalogYAML []byte

// Category is one axis of visual variation.
type Category struct {
	ID        string `yaml:"id" json:"id"`
	Label     string `yaml:"label" json:"label"`
	Removable bool   `yaml:"removable" json:"removable"`
	// AnalysisHint replaces the generic per-category description sent to
	// the image analysis model.
	AnalysisHint string `yaml:"analysis_hint" json:"-"`
}

// Group is a UI grouping of categories.
type Group struct {
	Title       string   `yaml:"title" json:"title"`
	CategoryIDs []string `yaml:"categories" json:"categories"`
}

type document struct {
	Categories []Category `yaml:"categories"`
	Groups     []Group    `yaml:"groups"`
}

// Catalog is immutable once built.
type Catalog struct {
	categories []Category
	groups     []Group
	index      map[string]int
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the embedded catalog. It panics if the embedded document
// is invalid, which is a build defect rather than a runtime condition.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultCatalogYAML)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded categories.yaml: %v", err))
		}
		defaultCat = c
	})
	return defaultCat
}

// Parse decodes a YAML catalog document.
func Parse(raw []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc.Categories, doc.Groups)
}

// New validates and builds a catalog. Flattening the groups must reproduce
// the category order exactly.
func New(categories []Category, groups []Group) (*Catalog, error) {
	c := &Catalog{
		categories: make([]Category, 0, len(categories)),
		index:      make(map[string]int, len(categories)),
	}
	for _, cat := range categories {
		cat.ID = strings.TrimSpace(cat.ID)
		cat.Label = strings.TrimSpace(cat.Label)
		if cat.ID == "" {
			return nil, fmt.Errorf("category id is required")
		}
		if cat.Label == "" {
			return nil, fmt.Errorf("category %q: label is required", cat.ID)
		}
		if _, dup := c.index[cat.ID]; dup {
			return nil, fmt.Errorf("category %q: duplicate id", cat.ID)
		}
		c.index[cat.ID] = len(c.categories)
		c.categories = append(c.categories, cat)
	}

	if len(groups) == 0 {
		return c, nil
	}
	pos := 0
	for _, g := range groups {
		ids := make([]string, 0, len(g.CategoryIDs))
		for _, id := range g.CategoryIDs {
			id = strings.TrimSpace(id)
			if _, ok := c.index[id]; !ok {
				return nil, fmt.Errorf("group %q: unknown category %q", g.Title, id)
			}
			if pos >= len(c.categories) || c.categories[pos].ID != id {
				return nil, fmt.Errorf("group %q: category %q is out of catalog order", g.Title, id)
			}
			pos++
			ids = append(ids, id)
		}
		c.groups = append(c.groups, Group{Title: strings.TrimSpace(g.Title), CategoryIDs: ids})
	}
	if pos != len(c.categories) {
		return nil, fmt.Errorf("groups cover %d of %d categories", pos, len(c.categories))
	}
	return c, nil
}

// Categories returns the categories in catalog order.
func (c *Catalog) Categories() []Category {
	if c == nil {
		return nil
	}
	return append([]Category(nil), c.categories...)
}

// IDs returns the category ids in catalog order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, cat.ID)
	}
	return out
}

func (c *Catalog) Groups() []Group {
	if c == nil {
		return nil
	}
	out := make([]Group, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, Group{Title: g.Title, CategoryIDs: append([]string(nil), g.CategoryIDs...)})
	}
	return out
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.categories)
}

func (c *Catalog) Lookup(id string) (Category, bool) {
	if c == nil {
		return Category{}, false
	}
	i, ok := c.index[strings.TrimSpace(id)]
	if !ok {
		return Category{}, false
	}
	return c.categories[i], true
}

func (c *Catalog) IsRemovable(id string) bool {
	cat, ok := c.Lookup(id)
	return ok && cat.Removable
}

// Position reports the catalog index of id, or -1.
func (c *Catalog) Position(id string) int {
	if c == nil {
		return -1
	}
	i, ok := c.index[strings.TrimSpace(id)]
	if !ok {
		return -1
	}
	return i
}
