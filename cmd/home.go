package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zonasi/internal/geo"
	"github.com/sells-group/zonasi/internal/session"
)

var (
	homeLat float64
	homeLon float64
)

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Manage the saved home location used by rank",
}

var homeSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save a home location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fs := session.NewFileStore(cfg.Session.Path)
		st, err := fs.Load()
		if err != nil {
			return err
		}
		st, err = st.Set(geo.Point{Lat: homeLat, Lon: homeLon}, time.Now())
		if err != nil {
			return err
		}
		if err := fs.Save(st); err != nil {
			return err
		}

		zap.L().Info("home location saved",
			zap.String("home", st.Home.String()),
			zap.String("path", fs.Path),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "home set to %s\n", st.Home)
		return nil
	},
}

var homeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved home location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := session.NewFileStore(cfg.Session.Path).Load()
		if err != nil {
			return err
		}
		if !st.HasHome() {
			fmt.Fprintln(cmd.OutOrStdout(), "no home location set")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (set %s)\n", st.Home, st.SetAt.Format(time.RFC3339))
		return nil
	},
}

var homeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the saved home location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := session.NewFileStore(cfg.Session.Path).Remove(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "home location cleared")
		return nil
	},
}

func init() {
	homeSetCmd.Flags().Float64Var(&homeLat, "lat", 0, "home latitude in decimal degrees (required)")
	homeSetCmd.Flags().Float64Var(&homeLon, "lon", 0, "home longitude in decimal degrees (required)")
	_ = homeSetCmd.MarkFlagRequired("lat")
	_ = homeSetCmd.MarkFlagRequired("lon")

	homeCmd.AddCommand(homeSetCmd, homeShowCmd, homeClearCmd)
	rootCmd.AddCommand(homeCmd)
}
