// Package session holds the user's chosen home location between commands.
// The ranker never reads it; callers pass State.Home into each query.
package session

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/zonasi/internal/geo"
)

// ErrNoHome is returned by State.Query when no home location is set.
var ErrNoHome = errors.New("session: no home location set")

// State is an immutable snapshot of the session. Set and Clear return new values.
type State struct {
	Home  *geo.Point `yaml:"home,omitempty" json:"home,omitempty"`
	SetAt time.Time  `yaml:"set_at,omitempty" json:"set_at,omitempty"`
}

// Set returns a copy of s with the home location replaced by p.
func (s State) Set(p geo.Point, now time.Time) (State, error) {
	if err := geo.ValidatePoint(p); err != nil {
		return s, err
	}
	home := p
	return State{Home: &home, SetAt: now.UTC()}, nil
}

// Clear returns an empty state.
func (s State) Clear() State {
	return State{}
}

// HasHome reports whether a home location is set.
func (s State) HasHome() bool {
	return s.Home != nil
}

// Query returns the home location as a ranking query point.
func (s State) Query() (geo.Point, error) {
	if s.Home == nil {
		return geo.Point{}, ErrNoHome
	}
	return *s.Home, nil
}

// FileStore persists State as YAML.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the saved state. A missing file yields an empty state.
func (fs *FileStore) Load() (State, error) {
	data, err := os.ReadFile(fs.Path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, eris.Wrapf(err, "session: read %s", fs.Path)
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return State{}, eris.Wrapf(err, "session: parse %s", fs.Path)
	}
	if st.Home != nil {
		if err := geo.ValidatePoint(*st.Home); err != nil {
			return State{}, eris.Wrapf(err, "session: saved home in %s", fs.Path)
		}
	}
	return st, nil
}

// Save writes st, replacing the file atomically. An empty state removes the file.
func (fs *FileStore) Save(st State) error {
	if !st.HasHome() {
		return fs.Remove()
	}

	data, err := yaml.Marshal(st)
	if err != nil {
		return eris.Wrap(err, "session: marshal state")
	}

	dir := filepath.Dir(fs.Path)
	tmp, err := os.CreateTemp(dir, ".zonasi-session-*")
	if err != nil {
		return eris.Wrap(err, "session: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "session: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "session: close temp file")
	}
	if err := os.Rename(tmp.Name(), fs.Path); err != nil {
		return eris.Wrapf(err, "session: replace %s", fs.Path)
	}
	return nil
}

// Remove deletes the saved state. A missing file is not an error.
func (fs *FileStore) Remove() error {
	if err := os.Remove(fs.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return eris.Wrapf(err, "session: remove %s", fs.Path)
	}
	return nil
}
