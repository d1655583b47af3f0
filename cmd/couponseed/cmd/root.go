package cmd

import (
	"github.com/spf13/cobra"

	"github.com/armadaproject/couponseed/internal/couponseed"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "couponseed",
		Short: "couponseed seeds coupon codes and drives bulk-issue load tests.",
		Long: `couponseed seeds coupon codes and drives bulk-issue load tests.

For every pending test case it makes sure enough codes of the case's family are available,
generating and uploading more when needed, then starts the bulk-issue executions and waits
for them to finish. Progress is recorded in an execution log so that finished cases are
never run twice and interrupted ones resume where they stopped.

Defaults are read from ./config/couponseed/config.yaml and $HOME/.couponseed.yaml.
Further files can be merged with --config, and any value can be overridden with a
COUPONSEED_ environment variable, e.g. COUPONSEED_UPLOAD_BUCKET.`,
		SilenceUsage: true,
	}
	addPersistentFlags(cmd)

	app := couponseed.New()
	cmd.AddCommand(
		runCmd(app),
		generateCmd(app),
		uploadCmd(app),
		overviewCmd(app),
		issueCmd(app),
		pollCmd(app),
		cleanCmd(app),
		logCmd(app),
		versionCmd(app),
	)
	return cmd
}

// Print version info and exit.
func versionCmd(app *couponseed.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Version()
		},
	}
	return cmd
}
