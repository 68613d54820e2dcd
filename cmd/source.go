package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zonasi/internal/facility"
	"github.com/sells-group/zonasi/internal/geo"
	"github.com/sells-group/zonasi/internal/store"
	"github.com/sells-group/zonasi/internal/table"
	"github.com/sells-group/zonasi/internal/zonation"
)

// loadFacilities reads the facility table from the store or a table file and
// applies filter.
func loadFacilities(ctx context.Context, filter facility.Filter) ([]facility.Facility, error) {
	if fromStore {
		st, err := openStore(ctx)
		if err != nil {
			return nil, err
		}
		defer st.Close() //nolint:errcheck
		return st.ListFacilities(ctx, filter)
	}

	facilities, err := readTable(resolveTablePath())
	if err != nil {
		return nil, err
	}
	return filter.Apply(facilities), nil
}

func resolveTablePath() string {
	if tablePath != "" {
		return tablePath
	}
	return cfg.Table.Path
}

func readTable(path string) ([]facility.Facility, error) {
	facilities, err := table.ReadFacilities(path, table.Options{SheetName: cfg.Table.SheetName, Charset: cfg.Table.Charset})
	if err != nil {
		return nil, eris.Wrapf(err, "read facility table %s", path)
	}
	zap.L().Debug("loaded facility table",
		zap.String("path", path),
		zap.Int("facilities", len(facilities)),
	)
	return facilities, nil
}

// openStore connects to the configured store and applies the schema.
func openStore(ctx context.Context) (store.FacilityStore, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newRanker builds a ranker for the named distance model, falling back to
// the configured model when name is empty.
func newRanker(name string) (*zonation.Ranker, error) {
	if name == "" {
		name = cfg.Zonation.DistanceModel
	}
	model, err := geo.NewDistanceModel(name, cfg.Zonation.EarthRadiusKM)
	if err != nil {
		return nil, err
	}
	return zonation.NewRanker(model,
		zonation.WithLogger(zap.L()),
		zonation.WithConcurrency(cfg.Zonation.BatchConcurrency),
	), nil
}

// rankFlags are the ranking options shared by rank and rank-batch.
type rankFlags struct {
	radius         float64
	top            int
	distanceWeight float64
	qualityWeight  float64
	model          string
	levels         []string
	accreditations []string
	regencies      []string
	format         string
	output         string
	audit          bool
}

func (f *rankFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64Var(&f.radius, "radius", 0, "zonation radius in km (default from config)")
	fs.IntVar(&f.top, "top", 0, "number of results to keep (default from config)")
	fs.Float64Var(&f.distanceWeight, "distance-weight", 0, "weight of the proximity term (default from config)")
	fs.Float64Var(&f.qualityWeight, "quality-weight", 0, "weight of the quality term (default from config)")
	fs.StringVar(&f.model, "model", "", "distance model: geodesic or haversine (default from config)")
	fs.StringSliceVar(&f.levels, "level", nil, "only rank these levels (SMA, SMK, ...)")
	fs.StringSliceVar(&f.accreditations, "accreditation", nil, "only rank these accreditation tiers")
	fs.StringSliceVar(&f.regencies, "regency", nil, "only rank these regencies")
	fs.StringVar(&f.format, "format", "table", "output format: table, csv, json, yaml or xlsx")
	fs.StringVarP(&f.output, "output", "o", "", "write output to this file (required for xlsx)")
	fs.BoolVar(&f.audit, "audit", false, "record the ranking call in the store")
}

// config starts from the configured policy and applies only the flags the
// user actually set, so an explicit 0 still reaches validation.
func (f *rankFlags) config(cmd *cobra.Command) zonation.Config {
	c := zonation.FromSettings(cfg.Zonation)
	fs := cmd.Flags()
	if fs.Changed("radius") {
		c.RadiusKM = f.radius
	}
	if fs.Changed("top") {
		c.TopK = f.top
	}
	if fs.Changed("distance-weight") {
		c.DistanceWeight = f.distanceWeight
	}
	if fs.Changed("quality-weight") {
		c.QualityWeight = f.qualityWeight
	}
	return c
}

func (f *rankFlags) filter() facility.Filter {
	return facility.Filter{
		Levels:         f.levels,
		Accreditations: f.accreditations,
		Regencies:      f.regencies,
	}
}

// record writes one audit entry per result when --audit is set.
func (f *rankFlags) record(ctx context.Context, results ...*zonation.Result) error {
	if !f.audit {
		return nil
	}
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	for _, res := range results {
		if err := st.LogRank(ctx, store.NewRankLog(res)); err != nil {
			return err
		}
	}
	return nil
}
