package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zonasi/internal/config"
)

var cfg *config.Config

var (
	tablePath string
	fromStore bool
)

var rootCmd = &cobra.Command{
	Use:   "zonasi",
	Short: "Rank schools near a home location by distance and quality",
	Long:  "Scores facilities inside a zonation radius by a weighted blend of proximity and accreditation quality, from a cleaned school table or the facility store.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&tablePath, "table", "", "cleaned facility table, .csv or .xlsx (default from config)")
	rootCmd.PersistentFlags().BoolVar(&fromStore, "from-store", false, "read facilities from the configured store instead of a table file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
