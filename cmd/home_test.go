package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zonasi/internal/geo"
	"github.com/sells-group/zonasi/internal/session"
)

func runHome(t *testing.T, sub *cobra.Command) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&buf)
	err := sub.RunE(c, nil)
	return buf.String(), err
}

func TestHomeCmd_SetShowClear(t *testing.T) {
	cfg = testConfig(t)

	out, err := runHome(t, homeShowCmd)
	require.NoError(t, err)
	assert.Equal(t, "no home location set\n", out)

	homeLat, homeLon = -6.9147, 107.6098
	out, err = runHome(t, homeSetCmd)
	require.NoError(t, err)
	assert.Equal(t, "home set to -6.91470, 107.60980\n", out)

	st, err := session.NewFileStore(cfg.Session.Path).Load()
	require.NoError(t, err)
	require.True(t, st.HasHome())
	assert.Equal(t, geo.Point{Lat: -6.9147, Lon: 107.6098}, *st.Home)

	out, err = runHome(t, homeShowCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "-6.91470, 107.60980 (set ")

	out, err = runHome(t, homeClearCmd)
	require.NoError(t, err)
	assert.Equal(t, "home location cleared\n", out)

	out, err = runHome(t, homeShowCmd)
	require.NoError(t, err)
	assert.Equal(t, "no home location set\n", out)
}

func TestHomeCmd_SetInvalid(t *testing.T) {
	cfg = testConfig(t)
	homeLat, homeLon = 120, 107.6

	_, err := runHome(t, homeSetCmd)
	require.Error(t, err)
	var coordErr *geo.InvalidCoordinateError
	assert.ErrorAs(t, err, &coordErr)

	st, err := session.NewFileStore(cfg.Session.Path).Load()
	require.NoError(t, err)
	assert.False(t, st.HasHome())
}

func TestHomeCmd_ClearWithoutHome(t *testing.T) {
	cfg = testConfig(t)
	_, err := runHome(t, homeClearCmd)
	assert.NoError(t, err)
}
