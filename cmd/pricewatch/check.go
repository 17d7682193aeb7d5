package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/pricewatch/pkg/watcher"
)

type CheckConfig struct {
	ID  string
	All bool
}

func NewCheckConfig() *CheckConfig {
	return &CheckConfig{}
}

type checkOutput struct {
	OK bool `json:"ok"`
	*watcher.CheckReport
}

func newCheckCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch tracked pages and evaluate price alerts",
		Long: `Fetch the selected product pages one after another, record the observed
prices and report price_drop and target_hit alerts. A page that fails to load
is reported in its result and does not stop the batch.

Example:
  pricewatch check --all
  pricewatch check --id 3f2a9c01bd`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			config := getCheckConfigFromFlags(cmd)

			return withApp(ctx, v, func(a *app) error {
				report, err := a.service.Check(ctx, watcher.CheckRequest{ID: config.ID, All: config.All})
				if err != nil {
					return err
				}
				writeJSON(cmd.OutOrStdout(), checkOutput{OK: true, CheckReport: report})
				return nil
			})
		},
	}

	cmd.Flags().String("id", "", "Check one item by id")
	cmd.Flags().Bool("all", false, "Check every tracked item")
	cmd.MarkFlagsMutuallyExclusive("id", "all")
	cmd.MarkFlagsOneRequired("id", "all")

	return cmd
}

func getCheckConfigFromFlags(cmd *cobra.Command) *CheckConfig {
	config := NewCheckConfig()

	if id, err := cmd.Flags().GetString("id"); err == nil {
		config.ID = id
	}
	if all, err := cmd.Flags().GetBool("all"); err == nil {
		config.All = all
	}

	return config
}
