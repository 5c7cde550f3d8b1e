package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"photo-quiz-service/internal/config"
	"photo-quiz-service/internal/infra/file"
	"photo-quiz-service/internal/infra/postgres"
)

// NewImportCmd loads a CSV/YAML pool file and upserts it into Postgres.
func NewImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Upsert a CSV or YAML pool file into Postgres",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			path := cfg.Quiz.Source
			if len(args) == 1 {
				path = args[0]
			}

			ctx := cmd.Context()
			pool, err := file.NewPoolLoader(path).LoadPool(ctx)
			if err != nil {
				return err
			}
			if err := runMigrations(ctx, cfg); err != nil {
				return err
			}

			db, err := openBun(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := postgres.NewImporter(db).Import(ctx, pool.Records)
			if err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}
			log.Printf("imported %d records from %s", n, path)
			return nil
		},
	}
}
