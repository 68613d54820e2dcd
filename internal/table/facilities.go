// Package table reads cleaned facility tables from CSV and XLSX files.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/zonasi/internal/facility"
	"github.com/sells-group/zonasi/internal/geo"
)

// Column names of the cleaned school table.
const (
	ColNPSN             = "NPSN"
	ColName             = "NAMA SEKOLAH"
	ColLevel            = "JENJANG"
	ColAccreditation    = "AKREDITASI_CLEAN"
	ColRawAccreditation = "AKREDITASI"
	ColQuality          = "QUALITY_SCORE"
	ColLat              = "LINTANG"
	ColLon              = "BUJUR"
	ColRegency          = "KABUPATEN"
	ColDistrict         = "KECAMATAN"
	ColStatus           = "STATUS"
)

var requiredColumns = []string{ColName, ColLat, ColLon}

// decimal parses numbers written with either '.' or ',' as the decimal
// separator. Placeholders such as "-" or "nan" decode to NaN. Any other
// unparseable cell also decodes to NaN and keeps its raw text in bad.
type decimal struct {
	v   float64
	bad string
}

func (d *decimal) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch strings.ToLower(s) {
	case "", "-", "nan", "null", "none":
		*d = decimal{v: math.NaN()}
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		*d = decimal{v: math.NaN(), bad: s}
		return nil
	}
	*d = decimal{v: v}
	return nil
}

func (d *decimal) value() float64 {
	if d == nil {
		return math.NaN()
	}
	return d.v
}

type facilityRecord struct {
	NPSN             string   `csv:"NPSN"`
	Name             string   `csv:"NAMA SEKOLAH"`
	Level            string   `csv:"JENJANG"`
	Accreditation    string   `csv:"AKREDITASI_CLEAN"`
	RawAccreditation string   `csv:"AKREDITASI"`
	Quality          *decimal `csv:"QUALITY_SCORE"`
	Lat              *decimal `csv:"LINTANG"`
	Lon              *decimal `csv:"BUJUR"`
	Regency          string   `csv:"KABUPATEN"`
	District         string   `csv:"KECAMATAN"`
	Status           string   `csv:"STATUS"`
}

// ReadFacilities reads a facility table, choosing the format by file extension.
func ReadFacilities(path string, opts Options) ([]facility.Facility, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadFacilitiesXLSX(path, opts)
	case ".csv", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "table: open csv")
		}
		defer f.Close()
		r, err := charsetReader(f, opts.Charset)
		if err != nil {
			return nil, err
		}
		return DecodeFacilitiesCSV(r)
	default:
		return nil, eris.Errorf("table: unsupported file type %q", filepath.Ext(path))
	}
}

// DecodeFacilitiesCSV decodes a cleaned facility table from CSV.
func DecodeFacilitiesCSV(r io.Reader) ([]facility.Facility, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	return decodeFacilities(cr)
}

// charsetReader transcodes r to UTF-8 from the named encoding.
func charsetReader(r io.Reader, charset string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "table: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}

// ReadFacilitiesXLSX decodes a cleaned facility table from an XLSX sheet.
// The first row after opts.SkipRows is the header.
func ReadFacilitiesXLSX(path string, opts Options) ([]facility.Facility, error) {
	rows, err := ReadXLSX(path, opts)
	if err != nil {
		return nil, err
	}
	return decodeFacilities(&rowsReader{rows: rows})
}

func decodeFacilities(r csvutil.Reader) ([]facility.Facility, error) {
	dec, err := csvutil.NewDecoder(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []facility.Facility{}, nil
		}
		return nil, eris.Wrap(err, "table: read header")
	}

	header := dec.Header()
	for _, col := range requiredColumns {
		if !slices.Contains(header, col) {
			return nil, eris.Errorf("table: missing required column %q", col)
		}
	}

	var out []facility.Facility
	fallbackIDs := 0
	for row := 1; ; row++ {
		var rec facilityRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrapf(err, "table: decode row %d", row)
		}

		rec.warnBadNumbers(row)
		f := rec.toFacility()
		if f.ID == "" {
			f.ID = fmt.Sprintf("row-%d", row)
			fallbackIDs++
		}
		out = append(out, f)
	}

	if fallbackIDs > 0 {
		zap.L().Warn("table: facilities without NPSN were given row-position ids",
			zap.Int("count", fallbackIDs),
		)
	}
	if out == nil {
		out = []facility.Facility{}
	}
	return out, nil
}

// warnBadNumbers logs numeric cells that could not be parsed. The row is
// kept; its NaN position or quality is reported when it is ranked.
func (rec facilityRecord) warnBadNumbers(row int) {
	for _, c := range []struct {
		col string
		d   *decimal
	}{
		{ColQuality, rec.Quality},
		{ColLat, rec.Lat},
		{ColLon, rec.Lon},
	} {
		if c.d == nil || c.d.bad == "" {
			continue
		}
		zap.L().Warn("table: unparseable number, treating as missing",
			zap.Int("row", row),
			zap.String("column", c.col),
			zap.String("value", c.d.bad),
		)
	}
}

func (rec facilityRecord) toFacility() facility.Facility {
	acc := rec.Accreditation
	if strings.TrimSpace(acc) == "" {
		acc = rec.RawAccreditation
	}
	acc = facility.NormalizeAccreditation(acc)

	quality := rec.Quality.value()
	if rec.Quality == nil {
		quality = facility.QualityForAccreditation(acc)
	}

	return facility.Facility{
		ID:            cleanID(rec.NPSN),
		NPSN:          cleanID(rec.NPSN),
		Name:          facility.CleanText(rec.Name),
		Position:      geo.Point{Lat: rec.Lat.value(), Lon: rec.Lon.value()},
		QualityScore:  quality,
		Level:         strings.TrimSpace(rec.Level),
		Accreditation: acc,
		Regency:       facility.CleanText(rec.Regency),
		District:      facility.CleanText(rec.District),
		Status:        strings.ToUpper(strings.TrimSpace(rec.Status)),
	}
}

// cleanID trims an identifier and drops the ".0" suffix spreadsheets add to
// numeric codes.
func cleanID(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimSuffix(s, ".0")
}

// rowsReader adapts pre-read rows to csvutil.Reader, padding short rows to
// the header width.
type rowsReader struct {
	rows  [][]string
	i     int
	width int
}

func (r *rowsReader) Read() ([]string, error) {
	if r.i >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.i]
	r.i++
	if r.width == 0 {
		r.width = len(row)
	}
	if len(row) < r.width {
		padded := make([]string, r.width)
		copy(padded, row)
		row = padded
	}
	return row[:r.width], nil
}
