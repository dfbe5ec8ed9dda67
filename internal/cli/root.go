package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"restopay/internal/platform/config"
)

type options struct {
	rulesFile string
}

// NewRootCommand builds the restopay-reconcile command tree. Configuration
// comes from the same environment variables as the server.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "restopay-reconcile",
		Short: "Reconcile restaurant attendance against schedules, leave and payroll",
		Long: `restopay-reconcile merges time clock punches, scheduled shifts and approved
leave into one timeline per employee, validates it and reports the issues.

Batches are read as JSON from a file or stdin; the period command reads the
configured Postgres database instead.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.rulesFile, "rules", os.Getenv("RULES_FILE"), "Rules file layered over the environment settings")

	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newHoursCommand(opts))
	root.AddCommand(newPeriodCommand(opts))
	root.AddCommand(newValidateRulesCommand())
	return root
}

// Execute is the entry point called from main.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *options) rules() (*config.Rules, error) {
	if o.rulesFile == "" {
		return nil, nil
	}
	return config.ReadRules(o.rulesFile)
}
