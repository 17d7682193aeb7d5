package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/pricewatch/pkg/types/watch"
)

type historyOutput struct {
	OK      bool             `json:"ok"`
	ID      string           `json:"id"`
	History []watch.Snapshot `json:"history"`
}

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the recorded price history of an item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			id, _ := cmd.Flags().GetString("id")

			return withApp(ctx, v, func(a *app) error {
				history, err := a.service.History(ctx, id)
				if err != nil {
					return err
				}
				writeJSON(cmd.OutOrStdout(), historyOutput{OK: true, ID: id, History: history})
				return nil
			})
		},
	}

	cmd.Flags().String("id", "", "Id of the item")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
