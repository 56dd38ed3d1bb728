package prompt

import (
	"strings"

	"promptbuilder/internal/catalog"
)

const (
	faceTrait  = "face"
	dressTrait = "dress design detail and fabric texture"

	// ConsistencySegmentID identifies the leading consistency clause.
	ConsistencySegmentID = "consistency"
	// RefinedSegmentID identifies the single segment of a refined prompt.
	RefinedSegmentID = "refined"
)

// Options are the consistency toggles.
type Options struct {
	KeepFace  bool `json:"keep_face"`
	KeepDress bool `json:"keep_dress"`
}

// DefaultOptions keeps the dress and lets the face vary.
func DefaultOptions() Options {
	return Options{KeepDress: true}
}

type Mode string

const (
	ModeConsistency Mode = "consistency"
	ModeChange      Mode = "change"
	ModeKeep        Mode = "keep"
	ModeRemove      Mode = "remove"
	ModeCustom      Mode = "custom"
	ModeRefined     Mode = "refined"
)

// Segment is one clause of the prompt.
type Segment struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
	Mode  Mode   `json:"mode"`
}

type Result struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Compose builds the prompt. Categories are visited in catalog order, never
// in selection order. A remove marker on a category that is not removable
// renders as keep.
func Compose(cat *catalog.Catalog, sel Selections, opts Options) Result {
	var segs []Segment

	var traits []string
	if opts.KeepFace {
		traits = append(traits, faceTrait)
	}
	if opts.KeepDress {
		traits = append(traits, dressTrait)
	}
	if len(traits) > 0 {
		segs = append(segs, Segment{
			ID:    ConsistencySegmentID,
			Label: "Consistency",
			Text:  "Keep the existing " + strings.Join(traits, ", ") + ".",
			Mode:  ModeConsistency,
		})
	}

	for _, c := range cat.Categories() {
		name := strings.ToLower(c.Label)
		seg := Segment{ID: c.ID, Label: c.Label}
		s := sel[c.ID]
		switch {
		case s.Kind == KindRemove && c.Removable:
			seg.Text = "Remove the " + name + "."
			seg.Mode = ModeRemove
		case s.Kind == KindChange && len(s.Items) > 0:
			texts := make([]string, 0, len(s.Items))
			for _, it := range s.Items {
				texts = append(texts, it.PromptText)
			}
			seg.Text = "Change the " + name + " to " + listJoin(texts) + "."
			seg.Mode = ModeChange
		default:
			seg.Text = "Keep the existing " + name + "."
			seg.Mode = ModeKeep
		}
		segs = append(segs, seg)
	}

	return Result{Text: Join(segs), Segments: segs}
}

// Join flattens segments into prompt text, skipping blank clauses.
func Join(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
	return b.String()
}

// listJoin renders "a", "a and b", "a, b and c".
func listJoin(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}
