package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/armadaproject/couponseed/internal/common/app"
	"github.com/armadaproject/couponseed/internal/couponseed"
	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
	"github.com/armadaproject/couponseed/internal/couponseed/generator"
)

func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().String("family", "", "Code family: pos12, gen16 or mos.")
	cmd.Flags().Int("count", 0, "Number of codes.")
	cmd.Flags().String("subCode", "", "Six-digit sub-code; required for mos.")
	_ = cmd.MarkFlagRequired("family")
	_ = cmd.MarkFlagRequired("count")
}

func batchFlags(flags *pflag.FlagSet) (generator.Request, error) {
	name, err := flags.GetString("family")
	if err != nil {
		return generator.Request{}, err
	}
	family, err := barcode.ParseFamily(name)
	if err != nil {
		return generator.Request{}, err
	}
	count, err := flags.GetInt("count")
	if err != nil {
		return generator.Request{}, err
	}
	subCode, err := flags.GetString("subCode")
	if err != nil {
		return generator.Request{}, err
	}
	return generator.Request{Family: family, Count: count, SubCode: subCode}, nil
}

// Generate a batch of codes without uploading it.
func generateCmd(a *couponseed.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a batch of codes as CSV files and print its directory.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := batchFlags(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, cancel := app.CreateContextWithShutdown()
			defer cancel()
			return a.Generate(ctx, req)
		},
	}
	addBatchFlags(cmd)
	return cmd
}

func uploadCmd(a *couponseed.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Zip a batch directory, upload it to the ingestion bucket and print its URL.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cmd.Flags().GetString("dir")
			if err != nil {
				return err
			}
			key, err := cmd.Flags().GetString("key")
			if err != nil {
				return err
			}
			ctx, cancel := app.CreateContextWithShutdown()
			defer cancel()
			return a.Upload(ctx, dir, key)
		},
	}
	cmd.Flags().String("dir", "", "Batch directory to upload.")
	cmd.Flags().String("key", "", "Object key. Defaults to <dir name>-<YYYYMMDD_HH_MM_SS>.zip.")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func overviewCmd(a *couponseed.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Print how many codes of each family and sub-code are available.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.CreateContextWithShutdown()
			defer cancel()
			return a.Overview(ctx)
		},
	}
	return cmd
}

func issueCmd(a *couponseed.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Start one bulk-issue execution, record it in the history and print its ARN.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := batchFlags(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, cancel := app.CreateContextWithShutdown()
			defer cancel()
			return a.Issue(ctx, req.Family, req.Count, req.SubCode)
		},
	}
	addBatchFlags(cmd)
	return cmd
}

// Interactive; q, b or Ctrl+C stops watching.
func pollCmd(a *couponseed.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Watch one execution, or every execution in the history, until it finishes.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			arn, err := cmd.Flags().GetString("arn")
			if err != nil {
				return err
			}
			ctx, cancel := app.CreateContextWithShutdown()
			defer cancel()
			return a.Poll(ctx, arn)
		},
	}
	cmd.Flags().String("arn", "", "Execution ARN. Every execution in the history is watched when not set.")
	return cmd
}

func cleanCmd(a *couponseed.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete generated CSV files below the working directory and the output directory.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Clean()
		},
	}
	return cmd
}

func logCmd(a *couponseed.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the execution log and the state of every test case.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.CreateContextWithShutdown()
			defer cancel()
			return a.Log(ctx)
		},
	}
	return cmd
}
