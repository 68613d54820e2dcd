package main

import (
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sells-group/zonasi/internal/facility"
)

var (
	summaryTop            int
	summaryLevels         []string
	summaryAccreditations []string
	summaryRegencies      []string
	summaryFormat         string
	summaryOutput         string
)

// metricRow is one line of the summary in tabular formats.
type metricRow struct {
	Metric string `csv:"metric"`
	Value  string `csv:"value"`
}

func summaryRows(s facility.Summary) []metricRow {
	rows := []metricRow{
		{"total", strconv.Itoa(s.Total)},
		{"accredited_a", strconv.Itoa(s.AccreditedA)},
		{"accredited_a_pct", strconv.FormatFloat(s.AccreditedAPct, 'f', 1, 64)},
		{"mean_quality", strconv.FormatFloat(s.MeanQuality, 'f', 1, 64)},
		{"public", strconv.Itoa(s.Public)},
		{"private", strconv.Itoa(s.Private)},
	}

	tiers := make([]string, 0, len(s.ByAccreditation))
	for tier := range s.ByAccreditation {
		tiers = append(tiers, tier)
	}
	slices.Sort(tiers)
	for _, tier := range tiers {
		rows = append(rows, metricRow{"accreditation:" + tier, strconv.Itoa(s.ByAccreditation[tier])})
	}
	for _, d := range s.TopDistricts {
		rows = append(rows, metricRow{"district:" + d.District, strconv.Itoa(d.Count)})
	}
	return rows
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show headline statistics for the facility table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		facilities, err := loadFacilities(cmd.Context(), facility.Filter{
			Levels:         summaryLevels,
			Accreditations: summaryAccreditations,
			Regencies:      summaryRegencies,
		})
		if err != nil {
			return err
		}

		s := facility.Summarize(facilities, summaryTop)
		return render(cmd.OutOrStdout(), summaryFormat, summaryOutput, "summary", s, summaryRows(s), "")
	},
}

func init() {
	summaryCmd.Flags().IntVar(&summaryTop, "top-districts", facility.DefaultTopDistricts, "number of districts to list")
	summaryCmd.Flags().StringSliceVar(&summaryLevels, "level", nil, "only count these levels")
	summaryCmd.Flags().StringSliceVar(&summaryAccreditations, "accreditation", nil, "only count these accreditation tiers")
	summaryCmd.Flags().StringSliceVar(&summaryRegencies, "regency", nil, "only count these regencies")
	summaryCmd.Flags().StringVar(&summaryFormat, "format", "table", "output format: table, csv, json, yaml or xlsx")
	summaryCmd.Flags().StringVarP(&summaryOutput, "output", "o", "", "write output to this file (required for xlsx)")
	rootCmd.AddCommand(summaryCmd)
}
