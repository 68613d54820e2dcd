package main

import (
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zonasi/internal/geo"
	"github.com/sells-group/zonasi/internal/zonation"
)

var (
	batchQueriesPath string
	batchOpts        rankFlags
)

// queryRecord is one row of a rank-batch queries file.
type queryRecord struct {
	Label string  `csv:"label,omitempty"`
	Lat   float64 `csv:"lat"`
	Lon   float64 `csv:"lon"`
}

// batchResult pairs a query with its ranking for json and yaml output.
type batchResult struct {
	Index  int              `json:"index" yaml:"index"`
	Label  string           `json:"label,omitempty" yaml:"label,omitempty"`
	Result *zonation.Result `json:"result" yaml:"result"`
}

// batchRow is the flat form of one ranked result in a batch.
type batchRow struct {
	Query int    `csv:"query"`
	Label string `csv:"label"`
	rankRow
}

var rankBatchCmd = &cobra.Command{
	Use:   "rank-batch",
	Short: "Rank facilities for every location in a CSV file",
	Long:  "Reads a CSV with lat, lon and an optional label column and ranks each location independently against the same facility table.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "rank-batch"))

		if err := cfg.Validate("rank"); err != nil {
			return err
		}

		f, err := os.Open(batchQueriesPath)
		if err != nil {
			return eris.Wrap(err, "open queries file")
		}
		defer f.Close() //nolint:errcheck

		records, err := readQueries(f)
		if err != nil {
			return err
		}
		queries := make([]geo.Point, len(records))
		for i, r := range records {
			queries[i] = geo.Point{Lat: r.Lat, Lon: r.Lon}
		}

		facilities, err := loadFacilities(ctx, batchOpts.filter())
		if err != nil {
			return err
		}
		ranker, err := newRanker(batchOpts.model)
		if err != nil {
			return err
		}
		results, err := ranker.RankMany(ctx, facilities, queries, batchOpts.config(cmd))
		if err != nil {
			return err
		}

		log.Info("rank-batch complete",
			zap.Int("queries", len(queries)),
			zap.Int("facilities", len(facilities)),
		)

		if err := batchOpts.record(ctx, results...); err != nil {
			return err
		}

		payload := make([]batchResult, len(results))
		var rows []batchRow
		for i, res := range results {
			payload[i] = batchResult{Index: i + 1, Label: records[i].Label, Result: res}
			for _, r := range rankRows(res) {
				rows = append(rows, batchRow{Query: i + 1, Label: records[i].Label, rankRow: r})
			}
		}
		return render(cmd.OutOrStdout(), batchOpts.format, batchOpts.output, "ranking", payload, rows, "")
	},
}

// readQueries decodes a queries CSV. The header must name lat and lon.
func readQueries(r io.Reader) ([]queryRecord, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, eris.New("queries file is empty")
		}
		return nil, eris.Wrap(err, "read queries header")
	}

	var out []queryRecord
	for {
		var q queryRecord
		if err := dec.Decode(&q); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrapf(err, "decode query %d", len(out)+1)
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, eris.New("queries file has no rows")
	}
	return out, nil
}

func init() {
	rankBatchCmd.Flags().StringVar(&batchQueriesPath, "queries", "", "CSV file with lat, lon and optional label columns (required)")
	_ = rankBatchCmd.MarkFlagRequired("queries")
	batchOpts.register(rankBatchCmd)
	rootCmd.AddCommand(rankBatchCmd)
}
