package facility

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zonasi/internal/geo"
)

func TestNormalizeAccreditation(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"A", "A"},
		{" b ", "B"},
		{"c", "C"},
		{"ｂ", "B"}, // full-width
		{"TT", "TT"},
		{"", "TT"},
		{"nan", "TT"},
		{"Belum Terakreditasi", "TT"},
		{"A+", "TT"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAccreditation(tt.raw))
		})
	}
}

func TestQualityForAccreditation(t *testing.T) {
	assert.Equal(t, 100.0, QualityForAccreditation("A"))
	assert.Equal(t, 75.0, QualityForAccreditation("b"))
	assert.Equal(t, 50.0, QualityForAccreditation("C"))
	assert.Equal(t, 20.0, QualityForAccreditation("TT"))
	assert.Equal(t, 20.0, QualityForAccreditation("-"))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "SMA NEGERI 3 BANDUNG", CleanText("  `SMA NEGERI 3 BANDUNG'  "))
	assert.Equal(t, "SMK Jumat", CleanText("SMK Jum'at"))
	assert.Equal(t, "", CleanText("   "))
}

func sampleFacilities() []Facility {
	return []Facility{
		{ID: "1", Name: "SMAN 1", Level: "SMA", Accreditation: "A", Regency: "KOTA BANDUNG", District: "Coblong", Status: "NEGERI", QualityScore: 100},
		{ID: "2", Name: "SMKN 2", Level: "SMK", Accreditation: "B", Regency: "KOTA BANDUNG", District: "Coblong", Status: "NEGERI", QualityScore: 75},
		{ID: "3", Name: "SMA Swasta", Level: "SMA", Accreditation: "C", Regency: "KAB. BANDUNG", District: "Dayeuhkolot", Status: "SWASTA", QualityScore: 50},
		{ID: "4", Name: "SMK Baru", Level: "SMK", Accreditation: "TT", Regency: "KOTA CIMAHI", District: "Cimahi Utara", Status: "", QualityScore: math.NaN()},
	}
}

func TestFilter_Apply(t *testing.T) {
	all := sampleFacilities()

	t.Run("zero filter keeps everything", func(t *testing.T) {
		got := Filter{}.Apply(all)
		require.Len(t, got, 4)
		got[0].Name = "changed"
		assert.Equal(t, "SMAN 1", all[0].Name, "input must not be mutated")
	})

	t.Run("level", func(t *testing.T) {
		got := Filter{Levels: []string{"sma"}}.Apply(all)
		require.Len(t, got, 2)
		assert.Equal(t, "1", got[0].ID)
		assert.Equal(t, "3", got[1].ID)
	})

	t.Run("combined", func(t *testing.T) {
		got := Filter{
			Levels:         []string{"SMA", "SMK"},
			Accreditations: []string{"A", "B"},
			Regencies:      []string{"KOTA BANDUNG"},
		}.Apply(all)
		require.Len(t, got, 2)
	})

	t.Run("no match", func(t *testing.T) {
		got := Filter{Regencies: []string{"KOTA BOGOR"}}.Apply(all)
		assert.Empty(t, got)
	})
}

func TestFoldKey(t *testing.T) {
	assert.Equal(t, "kota bandung", FoldKey("  KOTA Bandung "))
	assert.Equal(t, FoldKey("KABUPATEN ÖLBERG"), FoldKey("kabupaten ölberg"))
	// Decomposed and precomposed forms compare equal.
	assert.Equal(t, FoldKey("O\u0308"), FoldKey("\u00d6"))
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleFacilities(), 0)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.AccreditedA)
	assert.InDelta(t, 25.0, s.AccreditedAPct, 1e-9)
	assert.InDelta(t, 75.0, s.MeanQuality, 1e-9) // NaN row excluded
	assert.Equal(t, 2, s.Public)
	assert.Equal(t, 2, s.Private)
	assert.Equal(t, map[string]int{"A": 1, "B": 1, "C": 1, "TT": 1}, s.ByAccreditation)
	require.Len(t, s.TopDistricts, 3)
	assert.Equal(t, DistrictCount{District: "Coblong", Count: 2}, s.TopDistricts[0])
	assert.Equal(t, "Cimahi Utara", s.TopDistricts[1].District)
}

func TestSummarize_TopDistrictsCap(t *testing.T) {
	s := Summarize(sampleFacilities(), 1)
	require.Len(t, s.TopDistricts, 1)
	assert.Equal(t, "Coblong", s.TopDistricts[0].District)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 10)
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0.0, s.AccreditedAPct)
	assert.Equal(t, 0.0, s.MeanQuality)
	assert.Empty(t, s.TopDistricts)
}

func TestHasQuality(t *testing.T) {
	assert.True(t, Facility{QualityScore: 0}.HasQuality())
	assert.False(t, Facility{QualityScore: math.NaN()}.HasQuality())
	assert.False(t, Facility{QualityScore: math.Inf(-1), Position: geo.Point{}}.HasQuality())
}
