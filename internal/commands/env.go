package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/spendbook/internal/app"
	"github.com/dvloznov/spendbook/internal/config"
	"github.com/dvloznov/spendbook/internal/logger"
)

// env carries the per-invocation settings shared by every command.
type env struct {
	configPath string
}

func (e *env) load(cmd *cobra.Command) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	log, err := logger.NewWithOptions(cmd.ErrOrStderr(), logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, log, nil
}

// withApp opens the services for the duration of fn.
func (e *env) withApp(fn func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log, err := e.load(cmd)
		if err != nil {
			return err
		}
		ctx := logger.WithContext(cmd.Context(), log)

		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(ctx, cmd, a, args)
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// parseWindow turns --from/--to calendar dates into an epoch-millisecond
// window. The end date is inclusive.
func parseWindow(from, to string, now time.Time) (int64, int64, error) {
	var start int64
	end := now.UnixMilli()
	if from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, time.Local)
		if err != nil {
			return 0, 0, fmt.Errorf("--from: %w", err)
		}
		start = t.UnixMilli()
	}
	if to != "" {
		t, err := time.ParseInLocation("2006-01-02", to, time.Local)
		if err != nil {
			return 0, 0, fmt.Errorf("--to: %w", err)
		}
		end = t.AddDate(0, 0, 1).UnixMilli() - 1
	}
	if end < start {
		return 0, 0, errors.New("--to is before --from")
	}
	return start, end, nil
}
