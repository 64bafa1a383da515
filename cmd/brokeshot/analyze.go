package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kdimtricp/brokeshot/internal/models"
	"github.com/kdimtricp/brokeshot/internal/session"
	"github.com/kdimtricp/brokeshot/internal/storage"
)

func newAnalyzeCmd(opts *options) *cobra.Command {
	var (
		previewPath string
		inPlace     bool
		interval    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "analyze <video>",
		Short: "Upload a jumpshot video and show its breakdown",
		Long:  "Upload a jumpshot video to the analysis service and show the verdict for every phase.\n\n" + guidelinesText(),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !storage.IsVideoFile(args[0]) {
				return fmt.Errorf("%w: %q", storage.ErrUnsupportedFormat, filepath.Ext(args[0]))
			}

			rt, err := openRuntime(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			video := models.NewVideoReference(args[0])
			if !inPlace {
				video, err = rt.library.Import(args[0])
				if err != nil {
					return err
				}
			}

			s, err := runAnalysis(ctx, cmd, rt, models.NewShotCapture(video), interval, !inPlace)
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
	cmd.Flags().BoolVar(&inPlace, "in-place", false, "Analyze the file where it is instead of copying it into the library")
	cmd.Flags().DurationVar(&interval, "progress-interval", 2*time.Second, "How often to print a progress line")

	return cmd
}

// runAnalysis drives one session to completion and prints its report. The
// returned session has settled, so its preview is final. When owned is set the
// capture's video is a library copy and a failed flow deletes it.
func runAnalysis(ctx context.Context, cmd *cobra.Command, rt *runtime, capture models.ShotCapture, interval time.Duration, owned bool) (*session.Session, error) {
	s := session.New(capture, rt.sessionDeps())
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	log.Debug().Str("session", s.ID).Str("video", capture.Video.String()).Msg("Analysis started")

	state, err := waitForResult(ctx, s, cmd.ErrOrStderr(), interval)
	if err != nil {
		return nil, err
	}

	select {
	case <-s.Settled():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := rt.queue.Do(ctx, func() {}); err != nil {
		return nil, err
	}

	if state.Status == session.Failed {
		if owned {
			rt.discard(capture.Video)
		}
		return nil, fmt.Errorf("analysis failed: %s", state.Err)
	}

	printReport(cmd.OutOrStdout(), *state.Result)
	return s, nil
}
