package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/zonasi/internal/facility"
	"github.com/sells-group/zonasi/internal/geo"
	"github.com/sells-group/zonasi/internal/table"
	"github.com/sells-group/zonasi/internal/zonation"
)

func sampleResult() *zonation.Result {
	return &zonation.Result{
		Query:  geo.Point{Lat: alunAlunLat, Lon: alunAlunLon},
		Model:  geo.ModelGeodesic,
		Config: zonation.DefaultConfig(),
		Ranked: []zonation.RankedResult{
			{
				Rank: 1,
				Facility: facility.Facility{
					ID: "20219195", Name: "SMAN 5 BANDUNG", Level: "SMA", Accreditation: "A",
					Position: geo.Point{Lat: -6.9113, Lon: 107.6176}, QualityScore: 100,
					Regency: "KOTA BANDUNG", District: "Sumur Bandung",
				},
				DistanceKM: 0.93456,
				Score:      71.9634,
			},
		},
		InRange: 1,
	}
}

func TestRankRows(t *testing.T) {
	rows := rankRows(sampleResult())
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "20219195", rows[0].ID)
	assert.Equal(t, "0.935", rows[0].DistanceKM)
	assert.Equal(t, "71.96", rows[0].Score)
	assert.Equal(t, 100.0, rows[0].Quality)
}

func TestNoResultsMessage(t *testing.T) {
	assert.Empty(t, noResultsMessage(sampleResult()))

	empty := &zonation.Result{Query: geo.Point{Lat: -6.9, Lon: 107.6}, Config: zonation.DefaultConfig()}
	assert.Equal(t, "no facility within 2.00 km of -6.90000, 107.60000", noResultsMessage(empty))
}

func TestEncodeRecords(t *testing.T) {
	records, err := encodeRecords(rankRows(sampleResult()))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"rank", "id", "name", "level", "accreditation", "district", "regency", "lat", "lon", "distance_km", "quality_score", "score"}, records[0])
	assert.Equal(t, "SMAN 5 BANDUNG", records[1][2])
}

func TestEncodeRecords_EmptyKeepsHeader(t *testing.T) {
	records, err := encodeRecords([]metricRow{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"metric", "value"}}, records)
}

func TestEncodeRecords_EmbeddedRow(t *testing.T) {
	rows := []batchRow{{Query: 2, Label: "rumah", rankRow: rankRows(sampleResult())[0]}}
	records, err := encodeRecords(rows)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"query", "label", "rank", "id"}, records[0][:4])
	assert.Equal(t, []string{"2", "rumah", "1", "20219195"}, records[1][:4])
}

func TestRender_Formats(t *testing.T) {
	res := sampleResult()
	rows := rankRows(res)

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render(&buf, formatTable, "", "ranking", res, rows, ""))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "rank"))
		assert.Contains(t, lines[1], "SMAN 5 BANDUNG")
	})

	t.Run("default is table", func(t *testing.T) {
		var a, b bytes.Buffer
		require.NoError(t, render(&a, "", "", "ranking", res, rows, ""))
		require.NoError(t, render(&b, formatTable, "", "ranking", res, rows, ""))
		assert.Equal(t, b.String(), a.String())
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render(&buf, formatCSV, "", "ranking", res, rows, ""))
		assert.True(t, strings.HasPrefix(buf.String(), "rank,id,name,"))
		assert.Contains(t, buf.String(), "20219195,SMAN 5 BANDUNG,SMA,A")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render(&buf, formatJSON, "", "ranking", res, rows, ""))
		var got zonation.Result
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got.Ranked, 1)
		assert.Equal(t, "20219195", got.Ranked[0].Facility.ID)
		assert.Equal(t, 2.0, got.Config.RadiusKM)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, render(&buf, formatYAML, "", "ranking", res, rows, ""))
		var got map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "geodesic", got["model"])
		assert.Len(t, got["results"], 1)
	})
}

func TestRender_TableMessage(t *testing.T) {
	empty := &zonation.Result{Query: geo.Point{Lat: -6.9, Lon: 107.6}, Config: zonation.DefaultConfig()}
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatTable, "", "ranking", empty, rankRows(empty), noResultsMessage(empty)))
	assert.Contains(t, buf.String(), "rank")
	assert.Contains(t, buf.String(), "no facility within 2.00 km")
}

func TestRender_OutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranking.csv")
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatCSV, path, "ranking", nil, rankRows(sampleResult()), ""))
	assert.Empty(t, buf.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SMAN 5 BANDUNG")
}

func TestRender_XLSX(t *testing.T) {
	err := render(&bytes.Buffer{}, formatXLSX, "", "ranking", nil, rankRows(sampleResult()), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output is required")

	path := filepath.Join(t.TempDir(), "ranking.xlsx")
	require.NoError(t, render(&bytes.Buffer{}, formatXLSX, path, "ranking", nil, rankRows(sampleResult()), ""))

	rows, err := table.ReadXLSX(path, table.Options{SheetName: "ranking"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "rank", rows[0][0])
	assert.Equal(t, "SMAN 5 BANDUNG", rows[1][2])
}

func TestRender_UnknownFormat(t *testing.T) {
	err := render(&bytes.Buffer{}, "html", "", "ranking", nil, []metricRow{}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "html"`)
}
