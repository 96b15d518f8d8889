package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/spendbook/internal/app"
	"github.com/dvloznov/spendbook/internal/domain"
)

func newReviewCommand(e *env) *cobra.Command {
	var (
		undo        bool
		transaction bool
	)

	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Mark a statement's transactions, or one transaction, as reviewed",
		Args:  cobra.ExactArgs(1),
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			out := cmd.OutOrStdout()
			if transaction {
				var at *time.Time
				if !undo {
					now := time.Now().UTC()
					at = &now
				}
				tx, err := a.Transactions.Update(ctx, args[0], domain.TransactionPatch{ReviewedAt: domain.Some(at)})
				if err != nil {
					return err
				}
				st, err := a.Statements.Get(ctx, tx.StatementID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s reviewed=%t, statement %s is %s\n", tx.ID, tx.Reviewed(), st.ID, st.Status)
				return nil
			}

			st, err := a.Transactions.ReviewStatement(ctx, args[0], !undo)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s is %s\n", st.ID, st.Status)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "clear the review mark instead")
	cmd.Flags().BoolVar(&transaction, "transaction", false, "the id names a single transaction")
	return cmd
}
