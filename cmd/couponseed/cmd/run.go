package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/armadaproject/couponseed/internal/common/app"
	"github.com/armadaproject/couponseed/internal/common/logging"
	"github.com/armadaproject/couponseed/internal/couponseed"
	"github.com/armadaproject/couponseed/internal/couponseed/orchestrator"
)

const caseFlag = "case"

// Run every pending test case, or a single case given by --case.
// Prints a summary on exit.
func runCmd(a *couponseed.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every test case marked new that has not finished yet.",
		Long: "Run every test case marked new that has not finished yet. With --case, run that one case " +
			"whatever its status; a run of it interrupted since it last finished is resumed.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			logging.ConfigureLogging()
			return initParams(cmd, a)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Cancelled on SIGINT/SIGTERM. Running executions are left to finish remotely
			// and are picked up again by the next run.
			ctx, cancel := app.CreateContextWithShutdown()
			defer cancel()

			no, err := cmd.Flags().GetInt(caseFlag)
			if err != nil {
				return err
			}

			start := time.Now()
			var summary *orchestrator.Summary
			if cmd.Flags().Changed(caseFlag) {
				summary, err = a.RunCase(ctx, no)
			} else {
				summary, err = a.Run(ctx)
			}

			fmt.Fprintf(a.Out, "\n======= SUMMARY =======\n")
			fmt.Fprintf(a.Out, "Ran %d test case(s) in %s\n", summaryRan(summary), time.Since(start))
			if summary != nil {
				fmt.Fprintf(a.Out, "Successes: %d\n", summary.Succeeded)
				fmt.Fprintf(a.Out, "Failures: %d\n", summary.Failed)
				fmt.Fprintf(a.Out, "Skipped: %d\n", summary.Skipped)
			}
			return err
		},
	}
	cmd.Flags().Int(caseFlag, 0, "Number of a single test case to run.")
	return cmd
}

func summaryRan(summary *orchestrator.Summary) int {
	if summary == nil {
		return 0
	}
	return summary.Ran
}
