package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sells-group/zonasi/internal/facility"
)

var accreditationFormat string

type accreditationRow struct {
	Input   string `csv:"input" json:"input" yaml:"input"`
	Tier    string `csv:"tier" json:"tier" yaml:"tier"`
	Quality string `csv:"quality_score" json:"quality_score" yaml:"quality_score"`
}

var accreditationCmd = &cobra.Command{
	Use:   "accreditation LABEL...",
	Short: "Show the normalized tier and quality score for accreditation labels",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := make([]accreditationRow, len(args))
		for i, raw := range args {
			tier := facility.NormalizeAccreditation(raw)
			rows[i] = accreditationRow{
				Input:   raw,
				Tier:    tier,
				Quality: strconv.FormatFloat(facility.QualityForAccreditation(tier), 'f', -1, 64),
			}
		}
		return render(cmd.OutOrStdout(), accreditationFormat, "", "accreditation", rows, rows, "")
	},
}

func init() {
	accreditationCmd.Flags().StringVar(&accreditationFormat, "format", "table", "output format: table, csv, json or yaml")
	rootCmd.AddCommand(accreditationCmd)
}
