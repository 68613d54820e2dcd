package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/zonasi/internal/table"
	"github.com/sells-group/zonasi/internal/zonation"
)

// Output formats.
const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatXLSX  = "xlsx"
)

// rankRow is the flat form of a ranked result used by tabular formats.
type rankRow struct {
	Rank          int     `csv:"rank"`
	ID            string  `csv:"id"`
	Name          string  `csv:"name"`
	Level         string  `csv:"level"`
	Accreditation string  `csv:"accreditation"`
	District      string  `csv:"district"`
	Regency       string  `csv:"regency"`
	Lat           float64 `csv:"lat"`
	Lon           float64 `csv:"lon"`
	DistanceKM    string  `csv:"distance_km"`
	Quality       float64 `csv:"quality_score"`
	Score         string  `csv:"score"`
}

func rankRows(res *zonation.Result) []rankRow {
	rows := make([]rankRow, len(res.Ranked))
	for i, r := range res.Ranked {
		rows[i] = rankRow{
			Rank:          r.Rank,
			ID:            r.Facility.ID,
			Name:          r.Facility.Name,
			Level:         r.Facility.Level,
			Accreditation: r.Facility.Accreditation,
			District:      r.Facility.District,
			Regency:       r.Facility.Regency,
			Lat:           r.Facility.Position.Lat,
			Lon:           r.Facility.Position.Lon,
			DistanceKM:    strconv.FormatFloat(r.DistanceKM, 'f', 3, 64),
			Quality:       r.Facility.QualityScore,
			Score:         strconv.FormatFloat(r.Score, 'f', 2, 64),
		}
	}
	return rows
}

// noResultsMessage describes an empty ranking for humans.
func noResultsMessage(res *zonation.Result) string {
	if !res.Empty() {
		return ""
	}
	return fmt.Sprintf("no facility within %.2f km of %s", res.Config.RadiusKM, res.Query)
}

// render writes payload (json, yaml) or rows (table, csv, xlsx) in format.
// outPath redirects output to a file and is required for xlsx.
func render[T any](w io.Writer, format, outPath, sheet string, payload any, rows []T, message string) error {
	if format == "" {
		format = formatTable
	}
	switch format {
	case formatTable, formatCSV, formatJSON, formatYAML, formatXLSX:
	default:
		return eris.Errorf("unknown format %q (want table, csv, json, yaml or xlsx)", format)
	}

	if format == formatXLSX {
		if outPath == "" {
			return eris.New("--output is required for xlsx")
		}
		records, err := encodeRecords(rows)
		if err != nil {
			return err
		}
		return table.WriteXLSX(outPath, sheet, records[0], records[1:])
	}

	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return eris.Wrapf(err, "create %s", outPath)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(payload), "encode json")
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(payload); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	case formatCSV:
		records, err := encodeRecords(rows)
		if err != nil {
			return err
		}
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(records); err != nil {
			return eris.Wrap(err, "write csv")
		}
		return nil
	default:
		records, err := encodeRecords(rows)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, rec := range records {
			fmt.Fprintln(tw, strings.Join(rec, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return eris.Wrap(err, "write table")
		}
		if message != "" {
			fmt.Fprintln(w, message)
		}
		return nil
	}
}

// encodeRecords converts rows to CSV records, header first. An empty slice
// still yields the header.
func encodeRecords[T any](rows []T) ([][]string, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	enc := csvutil.NewEncoder(cw)

	if len(rows) == 0 {
		var zero T
		if err := enc.EncodeHeader(zero); err != nil {
			return nil, eris.Wrap(err, "encode header")
		}
	} else if err := enc.Encode(rows); err != nil {
		return nil, eris.Wrap(err, "encode rows")
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, eris.Wrap(err, "flush csv")
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "read back csv")
	}
	return records, nil
}
