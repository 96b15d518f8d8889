package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dvloznov/spendbook/internal/app"
	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/store"
)

func newStatementCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "statement",
		Aliases: []string{"st"},
		Short:   "Manage uploaded statements",
	}
	cmd.AddCommand(
		newStatementAddCommand(e),
		newStatementListCommand(e),
		newStatementShowCommand(e),
		newStatementRemoveCommand(e),
		newStatementReprocessCommand(e),
		newStatementArchiveCommand(e, true),
		newStatementArchiveCommand(e, false),
		newStatementPublishCommand(e),
	)
	return cmd
}

func newStatementAddCommand(e *env) *cobra.Command {
	var (
		bankID string
		upload bool
	)

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Register a statement file for a bank and print its id",
		Long: "Register a statement file for a bank and print its id. With --upload the file\n" +
			"is copied to the configured bucket and the statement points at the gs:// object.",
		Args: cobra.ExactArgs(1),
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			source := args[0]
			if upload {
				if a.Documents == nil {
					return errors.New("--upload needs gcs.bucket to be configured")
				}
				f, err := os.Open(source)
				if err != nil {
					return err
				}
				defer f.Close()
				name := fmt.Sprintf("statements/%s/%s-%s", bankID, uuid.New().String(), filepath.Base(source))
				if source, err = a.Documents.Upload(ctx, name, f); err != nil {
					return err
				}
			} else {
				abs, err := filepath.Abs(source)
				if err != nil {
					return err
				}
				source = abs
			}

			st, err := a.Statements.Create(ctx, bankID, source)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&bankID, "bank", "", "bank entity id (required)")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload the file to the document bucket")
	_ = cmd.MarkFlagRequired("bank")
	return cmd
}

func newStatementListCommand(e *env) *cobra.Command {
	var (
		bankID   string
		status   string
		archived bool
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List statements, newest first",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			filter := store.StatementFilter{BankID: bankID, Status: domain.StatementStatus(status)}
			if !all {
				filter.Archived = &archived
			}
			list, err := a.Statements.List(ctx, filter)
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tBANK\tSTATUS\tUPLOADED\tARCHIVED\tSOURCE")
			for _, st := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					st.ID, st.BankID, st.Status, formatTime(&st.UploadedAt), formatTime(st.ArchivedAt), st.SourceURI)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVar(&bankID, "bank", "", "only statements of this bank")
	cmd.Flags().StringVar(&status, "status", "", "only statements in this status")
	cmd.Flags().BoolVar(&archived, "archived", false, "list archived statements instead of active ones")
	cmd.Flags().BoolVar(&all, "all", false, "list archived and active statements")
	return cmd
}

func newStatementShowCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a statement and its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			st, err := a.Statements.Get(ctx, args[0])
			if err != nil {
				return err
			}
			txs, err := a.Transactions.ListByStatement(ctx, st.ID)
			if err != nil {
				return err
			}
			ix, err := a.Catalog.Index(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Statement %s\n", st.ID)
			fmt.Fprintf(out, "  Bank:      %s\n", ix.Key(&st.BankID))
			fmt.Fprintf(out, "  Status:    %s\n", st.Status)
			fmt.Fprintf(out, "  Source:    %s\n", st.SourceURI)
			fmt.Fprintf(out, "  Processed: %s\n", formatTime(st.ProcessedAt))
			fmt.Fprintf(out, "  Reviewed:  %s\n", formatTime(st.ReviewedAt))
			fmt.Fprintf(out, "  Published: %s\n\n", formatTime(st.PublishedAt))

			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tDATE\tAMOUNT\tFROM\tTO\tREVIEWED\tDESCRIPTION")
			for _, tx := range txs {
				reviewed := "no"
				if tx.Reviewed() {
					reviewed = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d %s\t%s\t%s\t%s\t%s\n",
					tx.ID, tx.CreatedAt.Format("2006-01-02"), tx.Amount, tx.Currency,
					ix.Key(tx.SenderID), ix.Key(tx.RecipientID), reviewed, tx.Description)
			}
			return tw.Flush()
		}),
	}
}

func newStatementRemoveCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a statement and its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if err := a.Statements.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		}),
	}
}

func newStatementReprocessCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <id>",
		Short: "Drop a statement's transactions and reset it to new",
		Args:  cobra.ExactArgs(1),
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			st, err := a.Statements.Reprocess(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", st.ID, st.Status)
			return nil
		}),
	}
}

func newStatementArchiveCommand(e *env, archive bool) *cobra.Command {
	use, short := "unarchive <id>", "Clear the archive flag"
	if archive {
		use, short = "archive <id>", "Set the archive flag"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			op := a.Statements.Unarchive
			if archive {
				op = a.Statements.Archive
			}
			return op(ctx, args[0])
		}),
	}
}

func newStatementPublishCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <id>",
		Short: "Send a reviewed statement to the configured sinks",
		Args:  cobra.ExactArgs(1),
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if a.Sink == nil {
				return errors.New("no publish sink configured (warehouse.project, notion.database_id or publish.csv_dir)")
			}
			st, err := a.Statements.Publish(ctx, args[0], a.Sink)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s published to %s\n", st.ID, a.Sink.Name())
			return nil
		}),
	}
}
