package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/zonasi/internal/store"
)

var (
	historyLimit  int
	historyFormat string
)

type historyRow struct {
	ID        string `csv:"id"`
	CreatedAt string `csv:"created_at"`
	Query     string `csv:"query"`
	Model     string `csv:"model"`
	RadiusKM  string `csv:"radius_km"`
	InRange   int    `csv:"in_range"`
	Skipped   int    `csv:"skipped"`
	Results   string `csv:"results"`
}

func historyRows(logs []store.RankLog) []historyRow {
	rows := make([]historyRow, len(logs))
	for i, l := range logs {
		rows[i] = historyRow{
			ID:        l.ID,
			CreatedAt: l.CreatedAt.Format(time.RFC3339),
			Query:     l.Query.String(),
			Model:     l.Model,
			RadiusKM:  strconv.FormatFloat(l.RadiusKM, 'f', -1, 64),
			InRange:   l.InRange,
			Skipped:   l.Skipped,
			Results:   strings.Join(l.ResultIDs, " "),
		}
	}
	return rows
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent audited ranking calls",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		logs, err := st.ListRankLogs(ctx, historyLimit)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), historyFormat, "", "history", logs, historyRows(logs), "")
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", store.DefaultLogLimit, "maximum entries to show")
	historyCmd.Flags().StringVar(&historyFormat, "format", "table", "output format: table, csv, json or yaml")
	rootCmd.AddCommand(historyCmd)
}
