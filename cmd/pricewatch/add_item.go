package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/pricewatch/pkg/types/watch"
	"github.com/jingkaihe/pricewatch/pkg/watcher"
)

type AddItemConfig struct {
	Query       string
	TargetPrice *float64
	Currency    string
	MaxResults  int
	TrustedOnly bool
}

func NewAddItemConfig() *AddItemConfig {
	return &AddItemConfig{
		Currency:   watch.DefaultCurrency,
		MaxResults: watcher.DefaultMaxResults,
	}
}

type addItemOutput struct {
	OK bool `json:"ok"`
	*watcher.QueryResult
}

func newAddItemCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-item",
		Short: "Discover product URLs for a query and track them",
		Long: `Search for product pages matching a free-text query and track every URL
found. With --trusted-only, only pages on known retailers are kept.

Example:
  pricewatch add-item --query "iphone 15 128gb" --trusted-only --max-results 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			config := getAddItemConfigFromFlags(cmd)

			return withApp(ctx, v, func(a *app) error {
				result, err := a.service.AddByQuery(ctx, watcher.QueryRequest{
					Query:       config.Query,
					TargetPrice: config.TargetPrice,
					Currency:    config.Currency,
					MaxResults:  config.MaxResults,
					TrustedOnly: config.TrustedOnly,
				})
				if err != nil {
					return err
				}
				writeJSON(cmd.OutOrStdout(), addItemOutput{OK: true, QueryResult: result})
				return nil
			})
		},
	}

	defaults := NewAddItemConfig()
	cmd.Flags().String("query", "", "Free-text product query")
	cmd.Flags().Float64("target-price", 0, "Alert when the price is at or below this value")
	cmd.Flags().String("currency", defaults.Currency, "Currency label stored with the items")
	cmd.Flags().Int("max-results", defaults.MaxResults, "Maximum number of URLs to track")
	cmd.Flags().Bool("trusted-only", defaults.TrustedOnly, "Keep only URLs on trusted retailer domains")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func getAddItemConfigFromFlags(cmd *cobra.Command) *AddItemConfig {
	config := NewAddItemConfig()

	if query, err := cmd.Flags().GetString("query"); err == nil {
		config.Query = query
	}
	config.TargetPrice = getTargetPrice(cmd)
	if currency, err := cmd.Flags().GetString("currency"); err == nil {
		config.Currency = currency
	}
	if maxResults, err := cmd.Flags().GetInt("max-results"); err == nil {
		config.MaxResults = maxResults
	}
	if trustedOnly, err := cmd.Flags().GetBool("trusted-only"); err == nil {
		config.TrustedOnly = trustedOnly
	}

	return config
}
