package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvloznov/spendbook/internal/secrets"
)

func newSecretCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage API keys in the encrypted key file",
		Long: "Manage API keys in the encrypted key file. Environment variables such as\n" +
			"SPENDBOOK_OPENAI_API_KEY take precedence over stored values.",
	}
	cmd.AddCommand(newSecretSetCommand(e), newSecretCheckCommand(e), newSecretRemoveCommand(e))
	return cmd
}

func (e *env) secretFile(cmd *cobra.Command) (*secrets.File, error) {
	cfg, _, err := e.load(cmd)
	if err != nil {
		return nil, err
	}
	return secrets.NewFile(cfg.Secrets.Path, cfg.Secrets.Passphrase)
}

func newSecretSetCommand(e *env) *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret, read from --value or the first line of stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := e.secretFile(cmd)
			if err != nil {
				return err
			}
			if value == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read secret from stdin: %w", err)
				}
				value = strings.TrimSpace(line)
			}
			if value == "" {
				return errors.New("secret value is empty")
			}
			if err := f.Put(cmd.Context(), args[0], value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "secret value")
	return cmd
}

func newSecretCheckCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "check <name>",
		Short: "Report where a secret resolves from without printing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := e.secretFile(cmd)
			if err != nil {
				return err
			}
			source, err := resolveSource(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], source)
			return nil
		},
	}
}

func resolveSource(ctx context.Context, name string, f *secrets.File) (string, error) {
	sources := []struct {
		label string
		store secrets.Store
	}{
		{"environment", secrets.Env{Prefix: "SPENDBOOK"}},
		{"key file", f},
	}
	for _, s := range sources {
		_, ok, err := s.store.Get(ctx, name)
		if err != nil {
			return "", err
		}
		if ok {
			return s.label, nil
		}
	}
	return "not set", nil
}

func newSecretRemoveCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a secret from the key file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := e.secretFile(cmd)
			if err != nil {
				return err
			}
			if err := f.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
