package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kdimtricp/brokeshot/internal/models"
	"github.com/kdimtricp/brokeshot/internal/storage"
)

func newWatchCmd(opts *options) *cobra.Command {
	var (
		settle  time.Duration
		inPlace bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Analyze every new video that lands in a folder",
		Long:  "Watch a folder, for example a phone sync or camera import folder, and analyze each new video once it has finished copying.\n\n" + guidelinesText(),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := openRuntime(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for new videos (Ctrl-C to stop)\n", args[0])

			return watchVideos(ctx, args[0], settle, func(path string) {
				video := models.NewVideoReference(path)
				if !inPlace {
					imported, err := rt.library.Import(path)
					if err != nil {
						log.Error().Err(err).Str("path", path).Msg("Failed to import video")
						return
					}
					video = imported
				}

				fmt.Fprintf(cmd.OutOrStdout(), "\n== %s ==\n", filepath.Base(path))
				if _, err := runAnalysis(ctx, cmd, rt, models.NewShotCapture(video), 5*time.Second, !inPlace); err != nil {
					log.Error().Err(err).Str("path", path).Msg("Analysis failed")
				}
			})
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", 2*time.Second, "How long a file must stop changing before it is analyzed")
	cmd.Flags().BoolVar(&inPlace, "in-place", false, "Analyze files where they are instead of copying them into the library")

	return cmd
}

// watchVideos calls handle for every video file created in dir once it has
// seen no writes for settle. handle runs on the watcher goroutine, one file
// at a time. It returns when ctx is cancelled.
func watchVideos(ctx context.Context, dir string, settle time.Duration, handle func(path string)) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	pending := make(map[string]time.Time)
	tick := time.NewTicker(max(settle/4, 10*time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !storage.IsVideoFile(event.Name) {
				continue
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				pending[event.Name] = time.Now()
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				delete(pending, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("dir", dir).Msg("Watcher error")

		case now := <-tick.C:
			for path, last := range pending {
				if now.Sub(last) < settle {
					continue
				}
				delete(pending, path)
				if fi, err := os.Stat(path); err != nil || fi.IsDir() {
					continue
				}
				log.Info().Str("path", path).Msg("New video")
				handle(path)
			}
		}
	}
}
