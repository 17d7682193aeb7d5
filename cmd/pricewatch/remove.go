package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type removeOutput struct {
	OK      bool `json:"ok"`
	Removed int  `json:"removed"`
}

func newRemoveCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Stop tracking an item",
		Long:  `Delete a tracked item. An unknown id removes nothing and reports "removed": 0.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			id, _ := cmd.Flags().GetString("id")

			return withApp(ctx, v, func(a *app) error {
				removed, err := a.service.Remove(ctx, id)
				if err != nil {
					return err
				}
				writeJSON(cmd.OutOrStdout(), removeOutput{OK: true, Removed: removed})
				return nil
			})
		},
	}

	cmd.Flags().String("id", "", "Id of the item to remove")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
