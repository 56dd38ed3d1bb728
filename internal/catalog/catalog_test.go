package catalog

import (
	"strings"
	"testing"

	"promptbuilder/internal/tester"
)

func TestDefaultCatalogOrder(t *testing.T) {
	c := Default()
	tester.Eq(t, c.Len(), 15)
	tester.Eq(t, c.IDs()[:3], []string{"ethnicity", "body_type", "hair"})
	tester.Eq(t, c.IDs()[14], "camera_angle")

	var flattened []string
	for _, g := range c.Groups() {
		flattened = append(flattened, g.CategoryIDs...)
	}
	tester.Eq(t, flattened, c.IDs(), "groups follow category order")
}

func TestDefaultCatalogRemovable(t *testing.T) {
	c := Default()
	tester.True(t, c.IsRemovable("bags"))
	tester.True(t, c.IsRemovable("accessory"))
	tester.False(t, c.IsRemovable("hair"))
	tester.False(t, c.IsRemovable("nope"))

	scene, ok := c.Lookup("scene")
	tester.True(t, ok)
	tester.True(t, strings.Contains(scene.AnalysisHint, "Do NOT describe lighting"), "scene hint")
	tester.Eq(t, c.Position("lighting"), 11)
	tester.Eq(t, c.Position("missing"), -1)
}

func TestNewRejectsGroupOutOfOrder(t *testing.T) {
	cats := []Category{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}}
	_, err := New(cats, []Group{{Title: "g", CategoryIDs: []string{"b", "a"}}})
	if err == nil {
		t.Fatalf("expected order error")
	}

	_, err = New(cats, []Group{{Title: "g", CategoryIDs: []string{"a"}}})
	if err == nil {
		t.Fatalf("expected coverage error")
	}

	c, err := New(cats, nil)
	tester.NoErr(t, err)
	tester.Eq(t, c.IDs(), []string{"a", "b"})
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]Category{{ID: "a", Label: "A"}, {ID: "a", Label: "Again"}}, nil)
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
	_, err = New([]Category{{ID: "a"}}, nil)
	if err == nil {
		t.Fatalf("expected missing label error")
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("categories: [")); err == nil {
		t.Fatalf("expected decode error")
	}
}
