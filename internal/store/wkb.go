package store

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/zonasi/internal/geo"
)

// SRID of stored positions (WGS 84).
const SRID = 4326

// encodePosition converts a facility position to EWKB POINT bytes.
// Returns nil, nil for positions that fail validation so they are stored as NULL.
func encodePosition(p geo.Point) ([]byte, error) {
	if geo.ValidatePoint(p) != nil {
		return nil, nil
	}

	g := geom.NewPointFlat(geom.XY, []float64{p.Lon, p.Lat}).SetSRID(SRID)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode position")
	}
	return data, nil
}

// decodePosition is the inverse of encodePosition.
func decodePosition(data []byte) (geo.Point, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return geo.Point{}, eris.Wrap(err, "store: decode position")
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return geo.Point{}, eris.Errorf("store: decode position: unexpected geometry %T", g)
	}
	return geo.Point{Lat: pt.Y(), Lon: pt.X()}, nil
}
