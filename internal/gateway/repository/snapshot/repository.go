// Package snapshot archives every successful taxonomy save as an immutable
// JSON document so an earlier state can be inspected or restored.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Store interface {
	Put(ctx context.Context, name string, content []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns every snapshot, newest first.
	List(ctx context.Context) ([]Info, error)
	Delete(ctx context.Context, name string) error
}

// Info describes one archived save.
type Info struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	SavedAt time.Time `json:"saved_at"`
}

var ErrNotFound = errors.New("snapshot not found")

const (
	keyPrefix  = "taxonomy/"
	nameLayout = "20060102T150405.000Z"
)

// Name builds a snapshot name whose lexical order is chronological.
func Name(at time.Time, id string) string {
	return at.UTC().Format(nameLayout) + "-" + strings.TrimSpace(id) + ".json"
}

// SavedAt recovers the save time encoded by Name.
func SavedAt(name string) (time.Time, bool) {
	if len(name) < len(nameLayout) {
		return time.Time{}, false
	}
	at, err := time.Parse(nameLayout, name[:len(nameLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

func validName(name string) (string, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	switch {
	case name == "":
		return "", fmt.Errorf("snapshot name is required")
	case strings.Contains(name, "..") || strings.Contains(name, "/"):
		return "", fmt.Errorf("invalid snapshot name %q", name)
	}
	return name, nil
}

func newestFirst(infos []Info) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name > infos[j].Name })
}

// Prune deletes all but the newest keep snapshots and returns how many were
// removed. keep <= 0 keeps everything.
func Prune(ctx context.Context, s Store, keep int) (int, error) {
	if s == nil || keep <= 0 {
		return 0, nil
	}
	infos, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, info := range infos[min(keep, len(infos)):] {
		if err := s.Delete(ctx, info.Name); err != nil && !errors.Is(err, ErrNotFound) {
			return removed, fmt.Errorf("delete %s: %w", info.Name, err)
		}
		removed++
	}
	return removed, nil
}
