package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"restopay/internal/app/engine"
	"restopay/internal/domain/attendance"
	"restopay/internal/platform/config"
	"restopay/internal/platform/db"
	"restopay/internal/platform/metrics"
)

func newPeriodCommand(opts *options) *cobra.Command {
	var (
		from, to string
		format   string
	)
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Reconcile a date range from the database and store the run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, formatJSON, formatTable, formatCSV, formatTimelines); err != nil {
				return err
			}
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			period, err := parsePeriod(from, to, loc)
			if err != nil {
				return err
			}
			rules, err := opts.rules()
			if err != nil {
				return err
			}

			pool, err := db.Connect(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer pool.Close()

			eng, err := engine.New(cfg, rules, attendance.NewStore(pool), metrics.Observer())
			if err != nil {
				return err
			}
			res, err := eng.RunPeriod(cmd.Context(), period, engine.TriggerCLI)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), format, res)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Day after the last one, YYYY-MM-DD")
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format: table, json, csv, timelines")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func parsePeriod(from, to string, loc *time.Location) (attendance.Period, error) {
	start, err := time.ParseInLocation(time.DateOnly, from, loc)
	if err != nil {
		return attendance.Period{}, fmt.Errorf("--from: %w", err)
	}
	end, err := time.ParseInLocation(time.DateOnly, to, loc)
	if err != nil {
		return attendance.Period{}, fmt.Errorf("--to: %w", err)
	}
	if !end.After(start) {
		return attendance.Period{}, fmt.Errorf("--to must be after --from")
	}
	return attendance.Period{From: start, To: end}, nil
}
