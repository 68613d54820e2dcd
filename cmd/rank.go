package main

import (
	"errors"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zonasi/internal/geo"
	"github.com/sells-group/zonasi/internal/session"
)

var (
	rankLat  float64
	rankLon  float64
	rankOpts rankFlags
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank facilities within the zonation radius of a location",
	Long:  "Ranks facilities near --lat/--lon, or near the saved home location when no coordinates are given.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "rank"))

		if err := cfg.Validate("rank"); err != nil {
			return err
		}

		query, err := resolveQuery(cmd)
		if err != nil {
			return err
		}

		facilities, err := loadFacilities(ctx, rankOpts.filter())
		if err != nil {
			return err
		}

		ranker, err := newRanker(rankOpts.model)
		if err != nil {
			return err
		}
		res, err := ranker.Rank(facilities, query, rankOpts.config(cmd))
		if err != nil {
			return err
		}

		log.Info("rank complete",
			zap.String("query", query.String()),
			zap.Int("facilities", len(facilities)),
			zap.Int("in_range", res.InRange),
			zap.Int("results", len(res.Ranked)),
			zap.Int("skipped", len(res.Skipped)),
		)

		if err := rankOpts.record(ctx, res); err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), rankOpts.format, rankOpts.output, "ranking", res, rankRows(res), noResultsMessage(res))
	},
}

// resolveQuery returns the --lat/--lon point or, when neither is set, the
// saved home location.
func resolveQuery(cmd *cobra.Command) (geo.Point, error) {
	latSet := cmd.Flags().Changed("lat")
	lonSet := cmd.Flags().Changed("lon")
	switch {
	case latSet && lonSet:
		return geo.Point{Lat: rankLat, Lon: rankLon}, nil
	case latSet || lonSet:
		return geo.Point{}, eris.New("both --lat and --lon are required")
	}

	st, err := session.NewFileStore(cfg.Session.Path).Load()
	if err != nil {
		return geo.Point{}, err
	}
	q, err := st.Query()
	if errors.Is(err, session.ErrNoHome) {
		return geo.Point{}, eris.New("no location given: pass --lat and --lon or run 'zonasi home set'")
	}
	return q, err
}

func init() {
	rankCmd.Flags().Float64Var(&rankLat, "lat", 0, "query latitude in decimal degrees")
	rankCmd.Flags().Float64Var(&rankLon, "lon", 0, "query longitude in decimal degrees")
	rankOpts.register(rankCmd)
	rootCmd.AddCommand(rankCmd)
}
