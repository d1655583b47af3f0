package cmd

import (
	"github.com/spf13/cobra"

	"github.com/armadaproject/couponseed/internal/common/config"
	"github.com/armadaproject/couponseed/internal/common/logging"
	"github.com/armadaproject/couponseed/internal/couponseed"
	"github.com/armadaproject/couponseed/internal/couponseed/configuration"
	"github.com/armadaproject/couponseed/internal/couponseed/testplan"
)

const (
	configFlag    = "config"
	planFlag      = "plan"
	logFormatFlag = "logFormat"

	defaultConfigPath = "./config/couponseed"
)

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringSlice(configFlag, nil, "Config files merged, in order, over the defaults in "+defaultConfigPath+".")
	cmd.PersistentFlags().String(planFlag, "", "YAML or JSON test plan. The built-in plan is used when not set.")
	cmd.PersistentFlags().String(logFormatFlag, "", "One of commandline, text or json. Defaults to text for run and commandline otherwise.")
}

// initParams loads and validates the configuration and test plan into app.Params.
func initParams(cmd *cobra.Command, app *couponseed.App) error {
	logFormat, err := cmd.Flags().GetString(logFormatFlag)
	if err != nil {
		return err
	}
	if logFormat != "" {
		if err := logging.SetFormat(logFormat); err != nil {
			return err
		}
	}

	overrides, err := cmd.Flags().GetStringSlice(configFlag)
	if err != nil {
		return err
	}
	var cfg configuration.CouponSeedConfiguration
	if _, err := config.LoadConfig(&cfg, defaultConfigPath, overrides); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		config.LogValidationErrors(err)
		return err
	}
	app.Params.Config = cfg

	planPath, err := cmd.Flags().GetString(planFlag)
	if err != nil {
		return err
	}
	if planPath != "" {
		plan, err := testplan.Load(planPath)
		if err != nil {
			return err
		}
		app.Params.Plan = plan
	}
	return nil
}
