package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"restopay/internal/app/engine"
	"restopay/internal/platform/config"
)

func newValidateRulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-rules FILE",
		Short: "Check a rules file without applying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := config.ReadRules(args[0])
			if err != nil {
				return err
			}
			settings, err := engine.Build(config.Load(), rules)
			if err != nil {
				return fmt.Errorf("rules %s: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok\n", args[0])
			fmt.Fprintf(out, "priorities: %s\n", settings.Options.Priorities)
			fmt.Fprintf(out, "max daily hours: %g, max weekly hours: %g, payroll tolerance: %g\n",
				settings.Options.Validation.MaxDailyHours,
				settings.Options.Validation.MaxWeeklyHours,
				settings.Options.Validation.HoursMismatchTolerance)
			fmt.Fprintf(out, "night window: %s-%s\n", settings.Policy.NightStart, settings.Policy.NightEnd)
			return nil
		},
	}
}
