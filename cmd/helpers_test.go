package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/zonasi/internal/config"
)

// Bandung schools around alun-alun (-6.9147, 107.6098). SMAN 5 is closest,
// SMKN 1 sits outside a 2 km radius and the last row has no position.
const testTableCSV = `NPSN,NAMA SEKOLAH,JENJANG,AKREDITASI,AKREDITASI_CLEAN,QUALITY_SCORE,LINTANG,BUJUR,KABUPATEN,KECAMATAN,STATUS
20219193,SMAN 3 BANDUNG,SMA,A,A,100,-6.9114,107.6185,KOTA BANDUNG,Sumur Bandung,NEGERI
20219195,SMAN 5 BANDUNG,SMA,A,A,100,-6.9113,107.6176,KOTA BANDUNG,Sumur Bandung,NEGERI
20219194,SMKN 1 BANDUNG,SMK,B,B,75,-6.9020,107.6301,KOTA BANDUNG,Coblong,NEGERI
,SMA TANPA KODE,SMA,,TT,0,-,107.5,KAB. BANDUNG,Dayeuhkolot,SWASTA
`

const (
	alunAlunLat = -6.9147
	alunAlunLon = 107.6098
)

// writeTestTable writes the fixture table and returns its path.
func writeTestTable(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schools.csv")
	require.NoError(t, os.WriteFile(path, []byte(testTableCSV), 0o644))
	return path
}

// testConfig returns a config with production defaults and every path
// pointed into a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(dir, "zonasi.db"),
		},
		Server: config.ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},
		Log: config.LogConfig{Level: "info", Format: "json"},
		Zonation: config.ZonationConfig{
			RadiusKM:         2,
			DistanceWeight:   60,
			QualityWeight:    40,
			TopK:             3,
			QualityCeiling:   100,
			DistanceModel:    "geodesic",
			EarthRadiusKM:    6371,
			BatchConcurrency: 2,
		},
		Session: config.SessionConfig{Path: filepath.Join(dir, "home.yaml")},
		Table:   config.TableConfig{Path: writeTestTable(t)},
	}
}

// resetSourceFlags clears the persistent source flags between tests.
func resetSourceFlags(t *testing.T) {
	t.Helper()
	tablePath, fromStore = "", false
	t.Cleanup(func() { tablePath, fromStore = "", false })
}
