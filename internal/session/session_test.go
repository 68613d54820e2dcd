package session

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zonasi/internal/geo"
)

var bandung = geo.Point{Lat: -6.9147, Lon: 107.6098}

func TestState_SetAndClear(t *testing.T) {
	var st State
	assert.False(t, st.HasHome())

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	next, err := st.Set(bandung, now)
	require.NoError(t, err)
	assert.True(t, next.HasHome())
	assert.Equal(t, bandung, *next.Home)
	assert.Equal(t, time.UTC, next.SetAt.Location())
	assert.False(t, st.HasHome(), "original state is unchanged")

	q, err := next.Query()
	require.NoError(t, err)
	assert.Equal(t, bandung, q)

	cleared := next.Clear()
	assert.False(t, cleared.HasHome())
	assert.True(t, next.HasHome())
}

func TestState_SetRejectsInvalidPoint(t *testing.T) {
	var st State
	_, err := st.Set(geo.Point{Lat: math.NaN(), Lon: 107}, time.Now())
	require.Error(t, err)
	var coordErr *geo.InvalidCoordinateError
	assert.True(t, errors.As(err, &coordErr))
}

func TestState_QueryWithoutHome(t *testing.T) {
	_, err := State{}.Query()
	assert.ErrorIs(t, err, ErrNoHome)
}

func TestFileStore_RoundTrip(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "home.yaml"))

	st, err := fs.Load()
	require.NoError(t, err)
	assert.False(t, st.HasHome())

	st, err = st.Set(bandung, time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, fs.Save(st))

	data, err := os.ReadFile(fs.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lat: -6.9147")

	loaded, err := fs.Load()
	require.NoError(t, err)
	require.True(t, loaded.HasHome())
	assert.Equal(t, bandung, *loaded.Home)
	assert.True(t, loaded.SetAt.Equal(st.SetAt))
}

func TestFileStore_SaveEmptyRemovesFile(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "home.yaml"))
	st, err := State{}.Set(bandung, time.Now())
	require.NoError(t, err)
	require.NoError(t, fs.Save(st))

	require.NoError(t, fs.Save(st.Clear()))
	_, err = os.Stat(fs.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// Removing twice is fine.
	assert.NoError(t, fs.Remove())
}

func TestFileStore_LoadErrors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("home: [unclosed"), 0o600))
	_, err := NewFileStore(bad).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session: parse")

	outOfRange := filepath.Join(dir, "range.yaml")
	require.NoError(t, os.WriteFile(outOfRange, []byte("home:\n  lat: 95\n  lon: 107\n"), 0o600))
	_, err = NewFileStore(outOfRange).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saved home")
}
