package main

import (
	"context"
	"fmt"
	"os"
	"time"

	batchdomain "github.com/smallbiznis/renewly/internal/batch/domain"
	"github.com/smallbiznis/renewly/internal/app"
	"github.com/smallbiznis/renewly/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// deps holds what subcommands need once the application graph is started.
type deps struct {
	pipeline *pipeline.Pipeline
	store    batchdomain.Store
}

// bootstrapFunc fills d and returns a function that releases its resources.
type bootstrapFunc func(ctx context.Context, d *deps) (func(context.Context) error, error)

// startApp runs the shared fx graph in-process against the configured database.
func startApp(ctx context.Context, d *deps) (func(context.Context) error, error) {
	fxApp := fx.New(
		app.Core,
		fx.NopLogger,
		fx.Populate(&d.pipeline, &d.store),
	)
	if err := fxApp.Start(ctx); err != nil {
		return nil, fmt.Errorf("start application: %w", err)
	}
	return fxApp.Stop, nil
}

func newRootCmd(bootstrap bootstrapFunc) *cobra.Command {
	d := &deps{}
	var stop func(context.Context) error

	root := &cobra.Command{
		Use:           "renewlyctl",
		Short:         "Run renewal reminder batches and inspect stored results",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			stop, err = bootstrap(cmd.Context(), d)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if stop == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return stop(ctx)
		},
	}

	root.AddCommand(runCommand(d))
	root.AddCommand(batchesCommand(d))
	return root
}

func main() {
	root := newRootCmd(startApp)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
