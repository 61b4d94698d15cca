package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keihiworks/keihi/internal/database"
)

func newInitDBCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the database schema (idempotent)",
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

			if err := database.New(pool).CreateTables(ctx); err != nil {
				return err
			}

			fmt.Println("database schema is up to date")
			return nil
		},
	}
}
