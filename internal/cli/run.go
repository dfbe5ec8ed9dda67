package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"restopay/internal/app/engine"
	"restopay/internal/domain/attendance"
	"restopay/internal/platform/config"
)

// ErrValidationFailed is returned with --strict when a run reports errors.
var ErrValidationFailed = errors.New("validation failed")

type batchFlags struct {
	input         string
	validatedOnly bool
	maxDaily      float64
	maxWeekly     float64
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "-", "Batch JSON file, - for stdin")
	cmd.Flags().BoolVar(&f.validatedOnly, "validated-only", false, "Ignore unvalidated clock punches")
	cmd.Flags().Float64Var(&f.maxDaily, "max-daily", 0, "Daily work hours above which a warning is raised")
	cmd.Flags().Float64Var(&f.maxWeekly, "max-weekly", 0, "Weekly work hours above which a warning is raised")
}

// engine builds an engine without a store. Flags that were set win over the
// rules file and the environment.
func (f *batchFlags) engine(cmd *cobra.Command, opts *options) (*engine.Engine, error) {
	rules, err := opts.rules()
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = &config.Rules{}
	}
	if cmd.Flags().Changed("validated-only") {
		rules.IncludeValidatedOnly = &f.validatedOnly
	}
	if cmd.Flags().Changed("max-daily") {
		rules.MaxDailyHours = f.maxDaily
	}
	if cmd.Flags().Changed("max-weekly") {
		rules.MaxWeeklyHours = f.maxWeekly
	}
	return engine.New(config.Load(), rules, nil)
}

func (f *batchFlags) batch(cmd *cobra.Command) (attendance.Batch, error) {
	var r io.Reader = cmd.InOrStdin()
	if f.input != "-" {
		file, err := os.Open(f.input)
		if err != nil {
			return attendance.Batch{}, err
		}
		defer file.Close()
		r = file
	}
	var batch attendance.Batch
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&batch); err != nil {
		return attendance.Batch{}, fmt.Errorf("read batch %s: %w", f.input, err)
	}
	return batch, nil
}

func newRunCommand(opts *options) *cobra.Command {
	var (
		flags  batchFlags
		format string
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile a batch and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, formatJSON, formatTable, formatCSV, formatTimelines); err != nil {
				return err
			}
			eng, err := flags.engine(cmd, opts)
			if err != nil {
				return err
			}
			batch, err := flags.batch(cmd)
			if err != nil {
				return err
			}
			res, err := eng.Reconcile(cmd.Context(), batch, engine.TriggerCLI)
			if err != nil {
				return err
			}
			if err := writeResult(cmd.OutOrStdout(), format, res); err != nil {
				return err
			}
			if strict && !res.Validation.IsValid {
				return fmt.Errorf("%w: %d errors", ErrValidationFailed, res.Validation.Summary.TotalErrors)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format: table, json, csv, timelines")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when the batch has validation errors")
	return cmd
}

func newHoursCommand(opts *options) *cobra.Command {
	var (
		flags  batchFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "hours",
		Short: "Reconcile a batch and print regular, overtime and night hours per employee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, formatJSON, formatTable); err != nil {
				return err
			}
			eng, err := flags.engine(cmd, opts)
			if err != nil {
				return err
			}
			batch, err := flags.batch(cmd)
			if err != nil {
				return err
			}
			res, err := eng.Reconcile(cmd.Context(), batch, engine.TriggerCLI)
			if err != nil {
				return err
			}
			hours, err := eng.Hours(res.Timelines)
			if err != nil {
				return err
			}
			return writeHours(cmd.OutOrStdout(), format, hours)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format: table, json")
	return cmd
}
