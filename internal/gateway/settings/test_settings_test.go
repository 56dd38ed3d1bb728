package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestResolveUnconfigured(t *testing.T) {
	s, err := New("", Endpoint{URL: "https://script.example/exec"}, nil)
	require.NoError(t, err)
	_, err = s.Resolve()
	require.ErrorIs(t, err, ErrUnconfigured)
	require.False(t, s.View().Configured)
}

func TestOverrideBeatsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	s, err := New(path, Endpoint{URL: "https://default/exec", APIKey: "default-key"}, nil)
	require.NoError(t, err)

	e, err := s.Resolve()
	require.NoError(t, err)
	require.Equal(t, "https://default/exec", e.URL)
	require.Equal(t, SourceDefault, s.View().URLSource)

	var seen []Endpoint
	s.OnChange(func(e Endpoint) { seen = append(seen, e) })
	require.NoError(t, s.Update(Endpoint{URL: " https://user/exec ", APIKey: "user-key-1234"}))

	e, err = s.Resolve()
	require.NoError(t, err)
	require.Equal(t, Endpoint{URL: "https://user/exec", APIKey: "user-key-1234"}, e)
	require.Len(t, seen, 1)

	v := s.View()
	require.Equal(t, SourceOverride, v.URLSource)
	require.Equal(t, "****1234", v.MaskedKey)

	// A new service reads the persisted override.
	reloaded, err := New(path, Endpoint{}, nil)
	require.NoError(t, err)
	e, err = reloaded.Resolve()
	require.NoError(t, err)
	require.Equal(t, "https://user/exec", e.URL)

	require.NoError(t, s.Clear())
	e, err = s.Resolve()
	require.NoError(t, err)
	require.Equal(t, "default-key", e.APIKey)
}

func TestUpdateRequiresBoth(t *testing.T) {
	s, err := New("", Endpoint{}, nil)
	require.NoError(t, err)
	require.ErrorIs(t, s.Update(Endpoint{URL: "https://x"}), ErrInvalid)
	require.ErrorIs(t, s.Update(Endpoint{APIKey: "k"}), ErrInvalid)
}

func TestReloadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := New(path, Endpoint{}, nil)
	require.NoError(t, err)

	var seen []Endpoint
	s.OnChange(func(e Endpoint) { seen = append(seen, e) })
	require.NoError(t, os.WriteFile(path, []byte("api_url: https://edited/exec\napi_key: edited\n"), 0o644))
	s.reload(path)

	e, err := s.Resolve()
	require.NoError(t, err)
	require.Equal(t, "https://edited/exec", e.URL)
	require.Len(t, seen, 1)

	s.reload(path)
	require.Len(t, seen, 1, "unchanged file does not notify")
}

func TestNewRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: [\n"), 0o644))
	_, err := New(path, Endpoint{}, nil)
	require.Error(t, err)
}

func TestWatchPicksUpEditsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := New(path, Endpoint{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Watch())

	changed := make(chan Endpoint, 4)
	s.OnChange(func(e Endpoint) { changed <- e })
	require.NoError(t, os.WriteFile(path, []byte("api_url: https://watched/exec\napi_key: w\n"), 0o644))

	select {
	case e := <-changed:
		require.Equal(t, "https://watched/exec", e.URL)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after the file changed")
	}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
