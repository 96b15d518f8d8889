package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/spendbook/internal/app"
)

type windowFlags struct {
	from string
	to   string
}

func (w *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&w.from, "from", "", "first day, YYYY-MM-DD (default: all time)")
	cmd.Flags().StringVar(&w.to, "to", "", "last day, YYYY-MM-DD (default: today)")
}

func (w *windowFlags) window() (int64, int64, error) {
	return parseWindow(w.from, w.to, time.Now())
}

func newReportCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summaries over reviewed transactions",
	}
	cmd.AddCommand(newReportExpensesCommand(e), newReportMetricsCommand(e), newReportBanksCommand(e))
	return cmd
}

func newReportExpensesCommand(e *env) *cobra.Command {
	var w windowFlags

	cmd := &cobra.Command{
		Use:   "expenses",
		Short: "Expense totals by top-level category",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			start, end, err := w.window()
			if err != nil {
				return err
			}
			totals, err := a.Analytics.SummarizeExpensesByParent(ctx, start, end)
			if err != nil {
				return err
			}
			if len(totals) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No reviewed expenses in this period.")
				return nil
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "CATEGORY\tTOTAL")
			for _, t := range totals {
				fmt.Fprintf(tw, "%s\t%d\n", t.ParentLabel, t.Total)
			}
			return tw.Flush()
		}),
	}
	w.register(cmd)
	return cmd
}

func newReportMetricsCommand(e *env) *cobra.Command {
	var (
		w       windowFlags
		income  []string
		savings []string
	)

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Income, expenses, savings and split credit",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			start, end, err := w.window()
			if err != nil {
				return err
			}
			m, err := a.Analytics.ComputeKeyMetrics(ctx, start, end, income, savings)
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintf(tw, "Income\t%d\n", m.Income)
			fmt.Fprintf(tw, "Expenses\t%d\n", m.Expenses)
			fmt.Fprintf(tw, "Savings\t%d\n", m.Savings)
			fmt.Fprintf(tw, "Cashflow\t%d\n", m.Cashflow)
			fmt.Fprintf(tw, "Savings ratio\t%.1f%%\n", m.SavingsRatio*100)
			fmt.Fprintf(tw, "Split credit\t%d\n", m.SplitCredit)
			return tw.Flush()
		}),
	}
	w.register(cmd)
	cmd.Flags().StringSliceVar(&income, "income", nil, "income entity ids")
	cmd.Flags().StringSliceVar(&savings, "savings", nil, "savings entity ids")
	return cmd
}

func newReportBanksCommand(e *env) *cobra.Command {
	var w windowFlags

	cmd := &cobra.Command{
		Use:   "banks",
		Short: "Reviewed transaction count and total per bank",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			start, end, err := w.window()
			if err != nil {
				return err
			}
			banks, err := a.Analytics.SummarizeBanks(ctx, start, end)
			if err != nil {
				return err
			}
			n, err := a.Analytics.CountReviewed(ctx, start, end)
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "BANK\tTRANSACTIONS\tTOTAL")
			for _, b := range banks {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", b.Label, b.Count, b.Total)
			}
			fmt.Fprintf(tw, "ALL\t%d\t\n", n)
			return tw.Flush()
		}),
	}
	w.register(cmd)
	return cmd
}
