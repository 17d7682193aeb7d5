package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/pricewatch/pkg/types/watch"
)

type listOutput struct {
	OK    bool          `json:"ok"`
	Count int           `json:"count"`
	Items []*watch.Item `json:"items"`
}

func newListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, v, func(a *app) error {
				items, err := a.service.List(ctx)
				if err != nil {
					return err
				}
				writeJSON(cmd.OutOrStdout(), listOutput{OK: true, Count: len(items), Items: items})
				return nil
			})
		},
	}
}
