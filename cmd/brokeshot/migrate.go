package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kdimtricp/brokeshot/internal/database"
)

func newMigrateCmd(opts *options) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending history database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewDB(database.Config{Path: opts.cfg.DBPath, SkipMigrations: true})
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			migrator := database.NewMigrator(db.Conn())
			out := cmd.OutOrStdout()

			if status {
				migrations, err := migrator.Status()
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Fprintln(out, "Migration Status:")
				fmt.Fprintln(out, "=================")
				for _, m := range migrations {
					state := "pending"
					if m.Applied {
						state = "applied"
					}
					fmt.Fprintf(out, "%-8s %s\n", state, m.Name)
				}
				return nil
			}

			applied, err := migrator.Run()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Applied %d migration(s) to %s\n", applied, db.Path())
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "Show migration status only")

	return cmd
}
