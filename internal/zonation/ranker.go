package zonation

import (
	"cmp"
	"slices"

	"go.uber.org/zap"

	"github.com/sells-group/zonasi/internal/facility"
	"github.com/sells-group/zonasi/internal/geo"
)

// Skip reasons reported in SkippedFacility.Reason.
const (
	ReasonInvalidPosition = "invalid_position"
	ReasonInvalidQuality  = "invalid_quality"
	ReasonDistanceFailed  = "distance_failed"
)

// RankedResult is one facility inside the radius with its computed scores.
type RankedResult struct {
	Rank       int               `json:"rank" yaml:"rank"`
	Facility   facility.Facility `json:"facility" yaml:"facility"`
	DistanceKM float64           `json:"distance_km" yaml:"distance_km"`
	Proximity  float64           `json:"proximity" yaml:"proximity"`
	Quality    float64           `json:"quality" yaml:"quality"`
	Score      float64           `json:"score" yaml:"score"`
}

// SkippedFacility reports an input row excluded from ranking because of a data defect.
type SkippedFacility struct {
	Index  int    `json:"index" yaml:"index"`
	ID     string `json:"id" yaml:"id"`
	Reason string `json:"reason" yaml:"reason"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Result is the outcome of one ranking call.
type Result struct {
	Query   geo.Point         `json:"query" yaml:"query"`
	Model   string            `json:"model" yaml:"model"`
	Config  Config            `json:"config" yaml:"config"`
	Ranked  []RankedResult    `json:"results" yaml:"results"`
	Skipped []SkippedFacility `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	// InRange counts valid facilities within the radius before top-K truncation.
	InRange int `json:"in_range" yaml:"in_range"`
}

// Empty reports whether no facility was found in range. This is a valid
// outcome, not an error.
func (r *Result) Empty() bool {
	return len(r.Ranked) == 0
}

// Rank returns the top cfg.TopK facilities within cfg.RadiusKM of query.
//
// Results are ordered by score descending; equal scores prefer the smaller
// distance, and remaining ties keep input order. Rows with an invalid
// position or quality score are reported in Result.Skipped instead of
// failing the call. The facilities slice is not modified.
func Rank(facilities []facility.Facility, query geo.Point, cfg Config, model geo.DistanceModel) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if model == nil {
		return nil, &InvalidConfigError{Problems: []string{"distance model is required"}}
	}
	if err := geo.ValidatePoint(query); err != nil {
		return nil, err
	}

	res := &Result{
		Query:  query,
		Model:  model.Name(),
		Config: cfg,
		Ranked: []RankedResult{},
	}

	var candidates []RankedResult
	for i, f := range facilities {
		if err := geo.ValidatePoint(f.Position); err != nil {
			res.Skipped = append(res.Skipped, SkippedFacility{Index: i, ID: f.ID, Reason: ReasonInvalidPosition, Detail: err.Error()})
			continue
		}
		if !f.HasQuality() {
			res.Skipped = append(res.Skipped, SkippedFacility{Index: i, ID: f.ID, Reason: ReasonInvalidQuality})
			continue
		}

		d, err := model.Distance(query, f.Position)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedFacility{Index: i, ID: f.ID, Reason: ReasonDistanceFailed, Detail: err.Error()})
			continue
		}
		if d > cfg.RadiusKM {
			continue
		}

		proximity := clamp01(1 - d/cfg.RadiusKM)
		quality := clamp01(f.QualityScore / cfg.QualityCeiling)
		candidates = append(candidates, RankedResult{
			Facility:   f,
			DistanceKM: d,
			Proximity:  proximity,
			Quality:    quality,
			Score:      proximity*cfg.DistanceWeight + quality*cfg.QualityWeight,
		})
	}
	res.InRange = len(candidates)

	slices.SortStableFunc(candidates, func(a, b RankedResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.DistanceKM, b.DistanceKM)
	})

	if len(candidates) > cfg.TopK {
		candidates = candidates[:cfg.TopK]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	res.Ranked = append(res.Ranked, candidates...)

	return res, nil
}

func clamp01(v float64) float64 {
	return min(1, max(0, v))
}

// RankerOption configures a Ranker.
type RankerOption func(*Ranker)

// WithLogger sets the logger used to report skipped rows. Defaults to zap.L().
func WithLogger(l *zap.Logger) RankerOption {
	return func(r *Ranker) {
		r.log = l
	}
}

// WithConcurrency bounds the number of queries RankMany evaluates at once.
func WithConcurrency(n int) RankerOption {
	return func(r *Ranker) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// Ranker binds a distance model and logger to Rank. It holds no per-call
// state and is safe for concurrent use.
type Ranker struct {
	model       geo.DistanceModel
	log         *zap.Logger
	concurrency int
}

// NewRanker creates a Ranker using model for all distance computations.
func NewRanker(model geo.DistanceModel, opts ...RankerOption) *Ranker {
	r := &Ranker{model: model, concurrency: 4}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = zap.L()
	}
	return r
}

// Model returns the distance model in use.
func (r *Ranker) Model() geo.DistanceModel {
	return r.model
}

// Rank ranks facilities around query and logs any skipped rows.
func (r *Ranker) Rank(facilities []facility.Facility, query geo.Point, cfg Config) (*Result, error) {
	res, err := Rank(facilities, query, cfg, r.model)
	if err != nil {
		return nil, err
	}

	for _, s := range res.Skipped {
		r.log.Warn("zonation: skipped facility",
			zap.Int("index", s.Index),
			zap.String("id", s.ID),
			zap.String("reason", s.Reason),
			zap.String("detail", s.Detail),
		)
	}
	r.log.Debug("zonation: ranked",
		zap.String("query", query.String()),
		zap.String("model", res.Model),
		zap.Int("facilities", len(facilities)),
		zap.Int("in_range", res.InRange),
		zap.Int("returned", len(res.Ranked)),
		zap.Int("skipped", len(res.Skipped)),
	)

	return res, nil
}
