// Package zonation ranks facilities inside a zonation radius by a weighted
// blend of proximity and quality.
package zonation

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/zonasi/internal/config"
)

// Config controls a single ranking call.
type Config struct {
	// RadiusKM is the inclusive zonation radius.
	RadiusKM float64 `json:"radius_km" yaml:"radius_km"`
	// DistanceWeight and QualityWeight are relative importances; only their
	// ratio matters for ordering, their sum is the score ceiling.
	DistanceWeight float64 `json:"distance_weight" yaml:"distance_weight"`
	QualityWeight  float64 `json:"quality_weight" yaml:"quality_weight"`
	TopK           int     `json:"top_k" yaml:"top_k"`
	// QualityCeiling is the quality score that maps to a full quality term.
	QualityCeiling float64 `json:"quality_ceiling" yaml:"quality_ceiling"`
}

// DefaultConfig returns the dashboard policy: 2 km radius, 60/40
// distance/quality weighting, top 3, quality out of 100.
func DefaultConfig() Config {
	return Config{
		RadiusKM:       2.0,
		DistanceWeight: 60,
		QualityWeight:  40,
		TopK:           3,
		QualityCeiling: 100,
	}
}

// FromSettings converts application settings into a ranking Config.
func FromSettings(s config.ZonationConfig) Config {
	return Config{
		RadiusKM:       s.RadiusKM,
		DistanceWeight: s.DistanceWeight,
		QualityWeight:  s.QualityWeight,
		TopK:           s.TopK,
		QualityCeiling: s.QualityCeiling,
	}
}

// MaxScore returns the highest composite score attainable under c.
func (c Config) MaxScore() float64 {
	return c.DistanceWeight + c.QualityWeight
}

// InvalidConfigError lists every problem found in a Config.
type InvalidConfigError struct {
	Problems []string
}

func (e *InvalidConfigError) Error() string {
	return "zonation: invalid config: " + strings.Join(e.Problems, "; ")
}

// Validate returns an *InvalidConfigError when c cannot be used for ranking.
func (c Config) Validate() error {
	var errs []string

	if !finite(c.RadiusKM) || c.RadiusKM <= 0 {
		errs = append(errs, fmt.Sprintf("radius_km must be > 0 (got %v)", c.RadiusKM))
	}
	if c.TopK <= 0 {
		errs = append(errs, fmt.Sprintf("top_k must be > 0 (got %d)", c.TopK))
	}
	if !finite(c.DistanceWeight) || c.DistanceWeight < 0 {
		errs = append(errs, fmt.Sprintf("distance_weight must be >= 0 (got %v)", c.DistanceWeight))
	}
	if !finite(c.QualityWeight) || c.QualityWeight < 0 {
		errs = append(errs, fmt.Sprintf("quality_weight must be >= 0 (got %v)", c.QualityWeight))
	}
	if !finite(c.QualityCeiling) || c.QualityCeiling <= 0 {
		errs = append(errs, fmt.Sprintf("quality_ceiling must be > 0 (got %v)", c.QualityCeiling))
	}

	if len(errs) > 0 {
		return &InvalidConfigError{Problems: errs}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
