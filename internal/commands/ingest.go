package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dvloznov/spendbook/internal/app"
	"github.com/dvloznov/spendbook/internal/pipeline"
)

func newIngestCommand(e *env) *cobra.Command {
	var (
		file  string
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <statement-id>",
		Short: "Extract transactions from a statement document",
		Long: "Upload the statement document to the extraction service, extract its\n" +
			"transactions and store them. Interrupting the command cancels the run\n" +
			"and leaves the statement in the error state.",
		Args: cobra.ExactArgs(1),
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			req := pipeline.Request{StatementID: args[0]}
			if file != "" {
				doc, err := pipeline.ReadDocument(file)
				if err != nil {
					return err
				}
				req.Document = doc
			}
			if !quiet {
				errOut := cmd.ErrOrStderr()
				req.Progress = func(f float64) {
					fmt.Fprintf(errOut, "\rprogress %3.0f%%", f*100)
					if f >= 1 {
						fmt.Fprintln(errOut)
					}
				}
			}

			st, err := a.Ingester.Ingest(ctx, req)
			if err != nil {
				return err
			}
			txs, err := a.Transactions.ListByStatement(ctx, st.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s with %d transactions\n", st.ID, st.Status, len(txs))
			return nil
		}),
	}
	cmd.Flags().StringVar(&file, "file", "", "read the document from this file instead of the statement source")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	return cmd
}
