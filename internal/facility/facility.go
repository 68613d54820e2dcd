// Package facility defines the school facility table consumed by the
// zonation ranker, plus the accreditation rules and filters applied to it.
package facility

import (
	"math"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/zonasi/internal/geo"
)

// Accreditation tiers.
const (
	AccreditationA  = "A"
	AccreditationB  = "B"
	AccreditationC  = "C"
	AccreditationTT = "TT" // not accredited or unknown
)

// Ownership status values.
const (
	StatusPublic  = "NEGERI"
	StatusPrivate = "SWASTA"
)

// qualityByAccreditation maps an accreditation tier to a 0-100 quality score.
var qualityByAccreditation = map[string]float64{
	AccreditationA:  100,
	AccreditationB:  75,
	AccreditationC:  50,
	AccreditationTT: 20,
}

// Facility is one row of the school table. Missing numeric values are NaN.
type Facility struct {
	ID            string    `json:"id" yaml:"id"`
	NPSN          string    `json:"npsn,omitempty" yaml:"npsn,omitempty"`
	Name          string    `json:"name" yaml:"name"`
	Position      geo.Point `json:"position" yaml:"position"`
	QualityScore  float64   `json:"quality_score" yaml:"quality_score"`
	Level         string    `json:"level,omitempty" yaml:"level,omitempty"`
	Accreditation string    `json:"accreditation,omitempty" yaml:"accreditation,omitempty"`
	Regency       string    `json:"regency,omitempty" yaml:"regency,omitempty"`
	District      string    `json:"district,omitempty" yaml:"district,omitempty"`
	Status        string    `json:"status,omitempty" yaml:"status,omitempty"`
}

// NormalizeAccreditation cleans a raw accreditation label. Anything other
// than A, B or C becomes TT.
func NormalizeAccreditation(raw string) string {
	s := cases.Upper(language.Indonesian).String(strings.TrimSpace(norm.NFKC.String(raw)))
	switch s {
	case AccreditationA, AccreditationB, AccreditationC:
		return s
	default:
		return AccreditationTT
	}
}

// QualityForAccreditation returns the quality score for a raw accreditation label.
func QualityForAccreditation(raw string) float64 {
	return qualityByAccreditation[NormalizeAccreditation(raw)]
}

// CleanText normalizes a free-text label: NFC form, backticks and
// apostrophes removed, surrounding whitespace trimmed.
func CleanText(s string) string {
	s = norm.NFC.String(s)
	s = strings.NewReplacer("`", "", "'", "").Replace(s)
	return strings.TrimSpace(s)
}

// Filter selects facilities by passthrough attributes. Empty lists match everything.
type Filter struct {
	Levels         []string `json:"levels,omitempty" yaml:"levels,omitempty"`
	Accreditations []string `json:"accreditations,omitempty" yaml:"accreditations,omitempty"`
	Regencies      []string `json:"regencies,omitempty" yaml:"regencies,omitempty"`
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return len(f.Levels) == 0 && len(f.Accreditations) == 0 && len(f.Regencies) == 0
}

// Match reports whether fac passes the filter. Comparison is case-insensitive.
func (f Filter) Match(fac Facility) bool {
	return matchAny(f.Levels, fac.Level) &&
		matchAny(f.Accreditations, fac.Accreditation) &&
		matchAny(f.Regencies, fac.Regency)
}

// Apply returns the facilities that pass the filter. The input is not modified.
func (f Filter) Apply(facilities []Facility) []Facility {
	if f.IsZero() {
		return slices.Clone(facilities)
	}
	out := make([]Facility, 0, len(facilities))
	for _, fac := range facilities {
		if f.Match(fac) {
			out = append(out, fac)
		}
	}
	return out
}

func matchAny(allowed []string, v string) bool {
	if len(allowed) == 0 {
		return true
	}
	key := FoldKey(v)
	for _, a := range allowed {
		if FoldKey(a) == key {
			return true
		}
	}
	return false
}

// FoldKey is the comparison key used by Filter: trimmed, NFC-normalized and
// Unicode case-folded.
func FoldKey(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// HasQuality reports whether the quality score is a finite number.
func (f Facility) HasQuality() bool {
	return !math.IsNaN(f.QualityScore) && !math.IsInf(f.QualityScore, 0)
}
