package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	importPath  string
	importMerge bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a cleaned facility table into the store",
	Long:  "Reads a .csv or .xlsx facility table and replaces the stored table, or merges by id with --merge.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path := importPath
		if path == "" {
			path = resolveTablePath()
		}
		if path == "" {
			return eris.New("a table file is required (--file or ZONASI_TABLE_PATH)")
		}

		facilities, err := readTable(path)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var n int64
		if importMerge {
			n, err = st.UpsertFacilities(ctx, facilities)
		} else {
			n, err = st.ReplaceFacilities(ctx, facilities)
		}
		if err != nil {
			return eris.Wrap(err, "import facilities")
		}

		zap.L().Info("import complete",
			zap.Int64("facilities", n),
			zap.String("file", path),
			zap.Bool("merge", importMerge),
			zap.String("driver", cfg.Store.Driver),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importPath, "file", "", "facility table to import (default --table or config)")
	importCmd.Flags().BoolVar(&importMerge, "merge", false, "upsert by id instead of replacing the stored table")
	rootCmd.AddCommand(importCmd)
}
