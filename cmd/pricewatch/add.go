package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/pricewatch/pkg/types/watch"
	"github.com/jingkaihe/pricewatch/pkg/watcher"
)

type AddConfig struct {
	URL         string
	TargetPrice *float64
	Currency    string
}

func NewAddConfig() *AddConfig {
	return &AddConfig{
		Currency: watch.DefaultCurrency,
	}
}

type addOutput struct {
	OK    bool               `json:"ok"`
	Item  *watcher.AddResult `json:"item"`
	Store string             `json:"store"`
}

func newAddCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Track one product URL",
		Long: `Track one product page. Adding a URL that is already tracked returns the
existing id with "duplicate": true.

Example:
  pricewatch add --url https://www.falabella.com/falabella-cl/product/123 --target-price 49990`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			config := getAddConfigFromFlags(cmd)

			return withApp(ctx, v, func(a *app) error {
				result, err := a.service.Add(ctx, watcher.AddRequest{
					URL:         config.URL,
					TargetPrice: config.TargetPrice,
					Currency:    config.Currency,
				})
				if err != nil {
					return err
				}
				writeJSON(cmd.OutOrStdout(), addOutput{OK: true, Item: result, Store: a.service.Location()})
				return nil
			})
		},
	}

	defaults := NewAddConfig()
	cmd.Flags().String("url", "", "Product page URL (http or https)")
	cmd.Flags().Float64("target-price", 0, "Alert when the price is at or below this value")
	cmd.Flags().String("currency", defaults.Currency, "Currency label stored with the item")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func getAddConfigFromFlags(cmd *cobra.Command) *AddConfig {
	config := NewAddConfig()

	if url, err := cmd.Flags().GetString("url"); err == nil {
		config.URL = url
	}
	config.TargetPrice = getTargetPrice(cmd)
	if currency, err := cmd.Flags().GetString("currency"); err == nil {
		config.Currency = currency
	}

	return config
}

// getTargetPrice returns nil unless --target-price was given explicitly.
func getTargetPrice(cmd *cobra.Command) *float64 {
	if !cmd.Flags().Changed("target-price") {
		return nil
	}
	target, err := cmd.Flags().GetFloat64("target-price")
	if err != nil {
		return nil
	}
	return &target
}
