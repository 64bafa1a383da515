package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kdimtricp/brokeshot/internal/database"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List analyzed shots, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewDB(database.Config{Path: opts.cfg.DBPath})
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close()

			shots, err := database.NewHistoryRepository(db).ListAll(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(shots)
			}

			if len(shots) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No shots analyzed yet")
				return nil
			}
			for _, sc := range shots {
				printHistoryLine(cmd.OutOrStdout(), sc)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full stored results as JSON")

	cmd.AddCommand(newHistoryShowCmd(opts))
	return cmd
}

func newHistoryShowCmd(opts *options) *cobra.Command {
	var previewPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the stored breakdown of one shot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := openRuntime(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			scored, err := rt.history.GetByID(ctx, args[0])
			if err != nil {
				if errors.Is(err, database.ErrNotFound) {
					return fmt.Errorf("no shot with id %s", args[0])
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Captured %s (%s)\n\n", scored.Capture.CapturedAt.Local().Format(time.RFC1123), scored.Capture.Video)

			// A stored capture never goes back to the service; the flow only
			// extracts the preview again.
			s, err := runAnalysis(ctx, cmd, rt, scored.Capture, time.Second, false)
			if err != nil {
				return err
			}

			if previewPath != "" {
				if err := writePreview(previewPath, s); err != nil {
					return err
				}
				cmd.PrintErrf("Preview written to %s\n", previewPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&previewPath, "preview", "", "Write the middle frame of the video to this JPEG file")

	return cmd
}
