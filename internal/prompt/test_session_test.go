package prompt

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"promptbuilder/internal/catalog"
)

func segmentByID(t *testing.T, res Result, id string) Segment {
	t.Helper()
	for _, s := range res.Segments {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("segment %q not found", id)
	return Segment{}
}

func TestSessionEditSurvivesUnrelatedChanges(t *testing.T) {
	s := NewSession(catalog.Default())
	_, err := s.Select("hair", hairItem("h1", "braids"))
	require.NoError(t, err)

	res, err := s.EditSegment("hair", "Give her long braids.")
	require.NoError(t, err)
	require.Equal(t, ModeCustom, segmentByID(t, res, "hair").Mode)
	require.Contains(t, res.Text, "Give her long braids.")

	// Another category and the toggles do not control the hair segment.
	_, err = s.Select("pose", hairItem("p1", "sitting"))
	require.NoError(t, err)
	res = s.SetOptions(Options{KeepFace: true})
	require.Equal(t, "Give her long braids.", segmentByID(t, res, "hair").Text)

	// Same selection again keeps the edit.
	res, err = s.Select("hair", hairItem("h1", "braids"))
	require.NoError(t, err)
	require.Equal(t, ModeCustom, segmentByID(t, res, "hair").Mode)

	// A different selection drops it.
	res, err = s.Select("hair", hairItem("h2", "a bun"))
	require.NoError(t, err)
	hair := segmentByID(t, res, "hair")
	require.Equal(t, ModeChange, hair.Mode)
	require.Equal(t, "Change the hair to a bun.", hair.Text)
}

func TestSessionConsistencyEditDroppedOnToggle(t *testing.T) {
	s := NewSession(catalog.Default())
	res, err := s.EditSegment(ConsistencySegmentID, "Keep her dress.")
	require.NoError(t, err)
	require.Equal(t, "Keep her dress.", res.Segments[0].Text)

	res = s.SetOptions(DefaultOptions())
	require.Equal(t, "Keep her dress.", res.Segments[0].Text, "unchanged toggles keep the edit")

	res = s.SetOptions(Options{KeepFace: true, KeepDress: true})
	require.Equal(t, ModeConsistency, res.Segments[0].Mode)
}

func TestSessionRefinedAndReset(t *testing.T) {
	s := NewSession(catalog.Default())
	res := s.ApplyRefined("  A vivid portrait.  ")
	require.Equal(t, "A vivid portrait.", res.Text)
	require.Len(t, res.Segments, 1)
	require.Equal(t, ModeRefined, res.Segments[0].Mode)

	_, err := s.EditSegment("hair", "x")
	require.ErrorIs(t, err, ErrUnknownSegment)
	res, err = s.EditSegment(RefinedSegmentID, "A vivid, moody portrait.")
	require.NoError(t, err)
	require.Equal(t, "A vivid, moody portrait.", res.Text)

	res, err = s.Remove("bags")
	require.NoError(t, err)
	require.Contains(t, res.Text, "Remove the bags.")

	_, err = s.Remove("hair")
	require.ErrorIs(t, err, ErrNotRemovable)

	res = s.Reset()
	require.Equal(t, DefaultOptions(), s.Options())
	require.Empty(t, s.Selections())
	require.Equal(t, Compose(catalog.Default(), nil, DefaultOptions()), res)
}

func TestSessionConcurrentUse(t *testing.T) {
	s := NewSession(catalog.Default())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = s.Select("hair", hairItem("h", "braids"))
			} else {
				s.SetOptions(Options{KeepFace: i%3 == 0})
			}
			_ = s.Snapshot()
		}(i)
	}
	wg.Wait()
	require.Contains(t, s.Snapshot().Text, "Change the hair to braids.")
}
