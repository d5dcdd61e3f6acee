package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"retail-pos-system/internal/adapters/storage/pebble"
	"retail-pos-system/internal/observability"
	"retail-pos-system/internal/receipt"
)

func main() {
	var dir string
	logger := observability.SetupLogger("development")

	var rootCmd = &cobra.Command{Use: "receipt-tool", SilenceUsage: true}
	rootCmd.PersistentFlags().StringVar(&dir, "dir", "data/receipts", "Каталог журнала чеков")

	withJournal := func(fn func(j *pebble.Journal) error) error {
		j, err := pebble.NewJournal(dir)
		if err != nil {
			return err
		}
		defer func() {
			if err := j.Close(); err != nil {
				logger.Error("не удалось закрыть журнал", "ERROR", err)
			}
		}()
		return fn(j)
	}

	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "Список чеков в журнале",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withJournal(func(j *pebble.Journal) error {
				receipts, err := j.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "SALE ID\tCUSTOMER\tLINES\tTOTAL\tCREATED AT")
				for _, r := range receipts {
					customer := "Guest"
					if !r.IsGuest() {
						customer = r.CustomerName
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.SaleID, customer, len(r.Sale.Lines), r.Sale.Total.StringFixed(2), r.Sale.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				return w.Flush()
			})
		},
	}
	listCmd.Flags().Int("limit", 50, "Максимум чеков")

	var showCmd = &cobra.Command{
		Use:   "show [sale-id]",
		Short: "Напечатать чек",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(func(j *pebble.Journal) error {
				r, err := j.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(os.Stdout, receipt.Invoice(r))
				return err
			})
		},
	}

	var deleteCmd = &cobra.Command{
		Use:   "delete [sale-id]",
		Short: "Удалить чек из журнала",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(func(j *pebble.Journal) error {
				if err := j.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				logger.Info("чек удален", "sale_id", args[0])
				return nil
			})
		},
	}

	rootCmd.AddCommand(listCmd, showCmd, deleteCmd)
	if err := rootCmd.Execute(); err != nil {
		logger.Error("ошибка выполнения команды", "ERROR", err)
		os.Exit(1)
	}
}
