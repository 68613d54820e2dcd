package facility

import (
	"sort"
	"strings"
)

// DefaultTopDistricts is the number of districts reported by Summarize.
const DefaultTopDistricts = 10

// DistrictCount is the number of facilities in one district.
type DistrictCount struct {
	District string `json:"district" yaml:"district"`
	Count    int    `json:"count" yaml:"count"`
}

// Summary holds headline statistics for a facility table.
type Summary struct {
	Total           int             `json:"total" yaml:"total"`
	AccreditedA     int             `json:"accredited_a" yaml:"accredited_a"`
	AccreditedAPct  float64         `json:"accredited_a_pct" yaml:"accredited_a_pct"`
	MeanQuality     float64         `json:"mean_quality" yaml:"mean_quality"`
	Public          int             `json:"public" yaml:"public"`
	Private         int             `json:"private" yaml:"private"`
	ByAccreditation map[string]int  `json:"by_accreditation" yaml:"by_accreditation"`
	TopDistricts    []DistrictCount `json:"top_districts,omitempty" yaml:"top_districts,omitempty"`
}

// Summarize computes table statistics. Facilities without a finite quality
// score are counted but excluded from MeanQuality. Facilities without a
// status count as private, matching the dashboard's "total minus public" split.
func Summarize(facilities []Facility, topDistricts int) Summary {
	s := Summary{
		Total:           len(facilities),
		ByAccreditation: make(map[string]int),
	}
	if topDistricts <= 0 {
		topDistricts = DefaultTopDistricts
	}

	var qualitySum float64
	var qualityN int
	districts := make(map[string]int)

	for _, f := range facilities {
		acc := NormalizeAccreditation(f.Accreditation)
		s.ByAccreditation[acc]++
		if acc == AccreditationA {
			s.AccreditedA++
		}
		if f.HasQuality() {
			qualitySum += f.QualityScore
			qualityN++
		}
		if strings.EqualFold(strings.TrimSpace(f.Status), StatusPublic) {
			s.Public++
		}
		if d := strings.TrimSpace(f.District); d != "" {
			districts[d]++
		}
	}

	s.Private = s.Total - s.Public
	if s.Total > 0 {
		s.AccreditedAPct = float64(s.AccreditedA) / float64(s.Total) * 100
	}
	if qualityN > 0 {
		s.MeanQuality = qualitySum / float64(qualityN)
	}

	for name, n := range districts {
		s.TopDistricts = append(s.TopDistricts, DistrictCount{District: name, Count: n})
	}
	sort.Slice(s.TopDistricts, func(i, j int) bool {
		if s.TopDistricts[i].Count != s.TopDistricts[j].Count {
			return s.TopDistricts[i].Count > s.TopDistricts[j].Count
		}
		return s.TopDistricts[i].District < s.TopDistricts[j].District
	})
	if len(s.TopDistricts) > topDistricts {
		s.TopDistricts = s.TopDistricts[:topDistricts]
	}

	return s
}
