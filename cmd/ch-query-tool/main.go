package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"retail-pos-system/internal/adapters/analytics/clickhouse"
	"retail-pos-system/internal/config"
	"retail-pos-system/internal/observability"
)

func main() {
	var (
		configPath string
		limit      int
	)
	logger := observability.SetupLogger("development")

	var rootCmd = &cobra.Command{Use: "ch-query-tool", SilenceUsage: true}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Путь к конфигурации")
	rootCmd.PersistentFlags().IntVar(&limit, "limit", 20, "Количество строк")

	connect := func(ctx context.Context) (*clickhouse.Store, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		return clickhouse.Open(ctx, clickhouse.Options{
			Addr:     cfg.ClickHouse.Addr,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
		})
	}

	// Sales the audit rules flagged
	var flaggedCmd = &cobra.Command{
		Use:   "flagged",
		Short: "Продажи, отмеченные аудитом",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := store.FlaggedSales(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "SALE ID\tCUSTOMER\tTOTAL\tREASON\tPROCESSED AT")
			for _, f := range rows {
				customer := f.CustomerID
				if customer == "" {
					customer = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.SaleID, customer, f.Total.StringFixed(2), f.Reason, f.ProcessedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	// Best sellers by units
	var topProductsCmd = &cobra.Command{
		Use:   "top-products",
		Short: "Самые продаваемые товары",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := store.TopProducts(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "PRODUCT ID\tNAME\tUNITS\tREVENUE")
			for _, p := range rows {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.ProductID, p.Name, p.Units, p.Revenue.StringFixed(2))
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(flaggedCmd, topProductsCmd)
	if err := rootCmd.Execute(); err != nil {
		logger.Error("ошибка выполнения команды", "ERROR", err)
		os.Exit(1)
	}
}
