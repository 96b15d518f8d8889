package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/spendbook/internal/app"
	"github.com/dvloznov/spendbook/internal/catalog"
	"github.com/dvloznov/spendbook/internal/domain"
)

func newEntityCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Manage banks and expense, income and savings categories",
	}
	cmd.AddCommand(newEntityListCommand(e), newEntityAddCommand(e), newEntityEditCommand(e), newEntityRemoveCommand(e), newEntityRootCommand(e))
	return cmd
}

func newEntityListCommand(e *env) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			var cat domain.Category
			if category != "" {
				parsed, err := domain.ParseCategory(category)
				if err != nil {
					return err
				}
				cat = parsed
			}
			entities, err := a.Catalog.List(ctx, cat)
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tLABEL\tCATEGORY\tPARENT\tCURRENCY")
			for _, ent := range entities {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ent.ID, ent.Label, ent.Category, deref(ent.ParentID), ent.Currency)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVar(&category, "category", "", "only list this category (bank, expense, income, savings)")
	return cmd
}

func entityFlags(cmd *cobra.Command, in *catalog.EntityInput, parent *string, category *string) {
	cmd.Flags().StringVar(&in.Label, "label", "", "display label (required)")
	cmd.Flags().StringVar(category, "category", "", "bank, expense, income or savings (required)")
	cmd.Flags().StringVar(parent, "parent", "", "parent expense entity id")
	cmd.Flags().StringVar(&in.Currency, "currency", "", "ISO currency code, for banks")
	cmd.Flags().StringVar(&in.Prompt, "prompt", "", "classification hint sent to the extraction service")
	_ = cmd.MarkFlagRequired("label")
	_ = cmd.MarkFlagRequired("category")
}

func newEntityAddCommand(e *env) *cobra.Command {
	var (
		in       catalog.EntityInput
		parent   string
		category string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an entity and print its id",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			in.Category = domain.Category(category)
			if parent != "" {
				in.ParentID = &parent
			}
			ent, err := a.Catalog.Create(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ent.ID)
			return nil
		}),
	}
	entityFlags(cmd, &in, &parent, &category)
	return cmd
}

func newEntityEditCommand(e *env) *cobra.Command {
	var (
		in       catalog.EntityInput
		parent   string
		category string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace the fields of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			in.Category = domain.Category(category)
			if parent != "" {
				in.ParentID = &parent
			}
			ent, err := a.Catalog.Update(ctx, args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", ent.ID, ent.Label)
			return nil
		}),
	}
	entityFlags(cmd, &in, &parent, &category)
	return cmd
}

func newEntityRemoveCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an entity; references to it become unknown",
		Args:  cobra.ExactArgs(1),
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			if err := a.Catalog.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		}),
	}
}

func newEntityRootCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "root <id>",
		Short: "Print the top-level ancestor of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: e.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
			root, err := a.Catalog.TopParent(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", root.ID, root.Label)
			return nil
		}),
	}
}
