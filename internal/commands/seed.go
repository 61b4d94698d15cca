package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keihiworks/keihi/internal/archive"
	"github.com/keihiworks/keihi/internal/core"
	"github.com/keihiworks/keihi/internal/database"
)

func newSeedCommand() *cobra.Command {
	var datasets int
	var rows int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upload generated demo datasets",
		Long: "Generates demo expense CSVs and pushes them through the full " +
			"upload pipeline (validation, archive, store), so seeded datasets " +
			"behave exactly like real uploads.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := database.NewPool(ctx, &cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			arch, err := archive.New(cfg.Upload.Dir)
			if err != nil {
				return err
			}

			service := core.NewService(database.New(pool), arch, core.ServiceConfig{
				MaxFileSize:          cfg.Upload.MaxFileSize,
				AmountColumn:         cfg.Validation.AmountColumn,
				DateColumn:           cfg.Validation.DateColumn,
				MaxConcurrentUploads: cfg.Upload.MaxConcurrent,
				UploadWaitTime:       cfg.Upload.MaxWaitTime,
			})

			created, err := database.Seed(ctx, service, database.SeedOptions{
				Datasets:    datasets,
				RowsPerFile: rows,
			})
			if err != nil {
				return fmt.Errorf("seeded %d datasets before failing: %w", created, err)
			}

			fmt.Printf("seeded %d datasets (%d rows each)\n", created, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&datasets, "datasets", 20, "number of datasets to create")
	cmd.Flags().IntVar(&rows, "rows", 10, "rows per dataset")

	return cmd
}
