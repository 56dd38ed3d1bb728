package taxonomy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TagSeparator joins tags in the flat wire representation.
const TagSeparator = "|"

// SplitTags parses a pipe-delimited tag string. Empty input yields no tags.
func SplitTags(s string) []string {
	return splitTrim(s, TagSeparator)
}

// JoinTags renders tags for the wire.
func JoinTags(tags []string) string {
	return strings.Join(tags, TagSeparator)
}

// ParseTagInput splits comma separated user input into trimmed tags.
func ParseTagInput(s string) []string {
	return splitTrim(s, ",")
}

func splitTrim(s, sep string) []string {
	out := []string{}
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// TagList is encoded as a pipe-joined string. Decoding also accepts a JSON
// array so hand-edited rows survive.
type TagList []string

func (t TagList) MarshalJSON() ([]byte, error) {
	return json.Marshal(JoinTags(t))
}

func (t *TagList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = TagList{}
		return nil
	case len(b) > 0 && b[0] == '[':
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return fmt.Errorf("tags: %w", err)
		}
		out := TagList{}
		for _, tag := range list {
			if tag = strings.TrimSpace(tag); tag != "" {
				out = append(out, tag)
			}
		}
		*t = out
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	*t = SplitTags(s)
	return nil
}

// WireOrder tolerates numbers, numeric strings and blanks.
type WireOrder struct {
	Value *int
}

func (o WireOrder) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(*o.Value)), nil
}

func (o *WireOrder) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		o.Value = nil
		return nil
	}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("order: %w", err)
	}
	switch v := raw.(type) {
	case float64:
		o.Value = OrderOf(int(v))
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			o.Value = nil
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("order %q: %w", v, err)
		}
		o.Value = OrderOf(int(f))
	default:
		return fmt.Errorf("order: unsupported value %s", string(b))
	}
	return nil
}

// WireItem is the row shape exchanged with the remote sheet store.
type WireItem struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Label      string    `json:"label"`
	PromptText string    `json:"prompt_text"`
	Tags       TagList   `json:"tags"`
	Order      WireOrder `json:"order"`
}

func ToWire(it Item) WireItem {
	tags := TagList{}
	if it.Tags != nil {
		tags = append(tags, it.Tags...)
	}
	w := WireItem{
		ID:         it.ID,
		Category:   it.Category,
		Label:      it.Label,
		PromptText: it.PromptText,
		Tags:       tags,
	}
	if it.Order != nil {
		w.Order.Value = OrderOf(*it.Order)
	}
	return w
}

func (w WireItem) Item() Item {
	tags := []string{}
	tags = append(tags, w.Tags...)
	it := Item{
		ID:         strings.TrimSpace(w.ID),
		Category:   strings.TrimSpace(w.Category),
		Label:      w.Label,
		PromptText: w.PromptText,
		Tags:       tags,
	}
	if w.Order.Value != nil {
		it.Order = OrderOf(*w.Order.Value)
	}
	return it
}

// EncodeItems renders the flat JSON array written by a wholesale save.
func EncodeItems(items []Item) ([]byte, error) {
	rows := make([]WireItem, 0, len(items))
	for _, it := range items {
		rows = append(rows, ToWire(it))
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return b, nil
}

// DecodeItems parses a JSON array of wire rows.
func DecodeItems(raw []byte) ([]Item, error) {
	var rows []WireItem
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	out := make([]Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Item())
	}
	return out, nil
}
