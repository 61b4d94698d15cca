package commands

import (
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/keihiworks/keihi/internal/core"
	"github.com/keihiworks/keihi/internal/database"
)

func newDatasetsCommand() *cobra.Command {
	var branch string
	var period string

	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List stored datasets",
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

			datasets, err := database.New(pool).ListDatasets(ctx, core.DatasetFilter{
				Branch: branch,
				Period: period,
			})
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "File", "Branch", "Period", "Rows", "Uploaded At"})
			for _, ds := range datasets {
				table.Append([]string{
					strconv.FormatInt(ds.ID, 10),
					ds.FileName,
					ds.BranchName,
					ds.Period,
					strconv.Itoa(ds.RowCount),
					ds.UploadedAt.Format("2006-01-02 15:04:05"),
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "filter by branch name")
	cmd.Flags().StringVar(&period, "period", "", "filter by period (YYYY-MM)")

	return cmd
}
