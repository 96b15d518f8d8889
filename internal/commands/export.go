package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dvloznov/spendbook/internal/app"
)

func newExportCommand(e *env) *cobra.Command {
	var (
		w      windowFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write reviewed transactions as CSV",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			start, end, err := w.window()
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			n, err := a.Analytics.ExportCSV(ctx, out, start, end)
			if err != nil {
				return err
			}
			if output != "" && output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d transactions to %s\n", n, output)
			}
			return nil
		}),
	}
	w.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
