package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"photo-quiz-service/internal/app"
	"photo-quiz-service/internal/config"
	"photo-quiz-service/internal/domain"
	"photo-quiz-service/internal/infra/images"
)

// NewValidateCmd loads the configured pool and reports whether sessions can be built from it.
func NewValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configured question pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			loader, closeLoader, err := newPoolLoader(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeLoader()

			pool, err := loader.LoadPool(ctx)
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), pool, images.NewResolver(cfg.Quiz.ImageDir), cfg.Quiz.Size)
		},
	}
}

// report prints pool statistics, then builds one full-size session so
// distractor shortages surface before players hit them.
func report(w io.Writer, pool domain.Pool, resolver *images.Resolver, size int) error {
	missing := 0
	for _, rec := range pool.Records {
		if _, ok := resolver.Resolve(rec.ImageRef); !ok {
			missing++
		}
	}
	fmt.Fprintf(w, "records:         %d\n", pool.Size())
	fmt.Fprintf(w, "male names:      %d\n", len(pool.Names.Male))
	fmt.Fprintf(w, "female names:    %d\n", len(pool.Names.Female))
	fmt.Fprintf(w, "missing images:  %d (in %s)\n", missing, resolver.Root())

	if size <= 0 {
		size = app.DefaultSessionSize
	}
	questions, err := app.BuildSession(app.NewRand(), pool, size)
	if err != nil {
		return fmt.Errorf("pool cannot build sessions: %w", err)
	}
	fmt.Fprintf(w, "session:         %d questions OK\n", len(questions))
	return nil
}
