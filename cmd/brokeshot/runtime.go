package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kdimtricp/brokeshot/internal/analysis"
	"github.com/kdimtricp/brokeshot/internal/config"
	"github.com/kdimtricp/brokeshot/internal/database"
	"github.com/kdimtricp/brokeshot/internal/dispatch"
	"github.com/kdimtricp/brokeshot/internal/frames"
	"github.com/kdimtricp/brokeshot/internal/models"
	"github.com/kdimtricp/brokeshot/internal/session"
	"github.com/kdimtricp/brokeshot/internal/storage"
)

// runtime is the wired set of components a command works with.
type runtime struct {
	cfg       *config.Config
	db        *database.DB
	history   *database.HistoryRepository
	library   *storage.LocalLibrary
	client    *analysis.Client
	extractor *frames.Extractor
	queue     *dispatch.Queue

	closers []func()
}

func openRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	db, err := database.NewDB(database.Config{Path: cfg.DBPath})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	rt.db = db
	rt.closers = append(rt.closers, func() { db.Close() })
	rt.history = database.NewHistoryRepository(db)

	library, err := storage.NewLocalLibrary(cfg.LibraryDir)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to initialize library: %w", err)
	}
	rt.library = library

	rt.client = analysis.NewClient(analysis.Config{
		Endpoint:       cfg.Endpoint,
		APIKey:         cfg.APIKey,
		Timeout:        cfg.RequestTimeout,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}, nil)

	var decoder frames.Decoder
	ffmpeg, err := frames.NewFFmpegDecoder()
	if err != nil {
		log.Warn().Err(err).Msg("Frame previews disabled")
		decoder = frames.Unavailable(err)
	} else {
		decoder = ffmpeg
		rt.closers = append(rt.closers, func() { ffmpeg.Cleanup() })
	}
	rt.extractor = frames.NewExtractor(decoder, cfg.FrameSize)

	rt.queue = dispatch.NewQueue()
	rt.closers = append(rt.closers, rt.queue.Start(ctx))

	return rt, nil
}

func (rt *runtime) sessionDeps() session.Deps {
	return session.Deps{
		Analyzer: rt.client,
		Frames:   rt.extractor,
		History:  rt.history,
		Main:     rt.queue,
	}
}

// discard deletes a library copy whose analysis failed.
func (rt *runtime) discard(video models.VideoReference) {
	if err := rt.library.Delete(video); err != nil {
		log.Warn().Err(err).Str("path", video.Path).Msg("Failed to discard video")
		return
	}
	log.Debug().Str("path", video.Path).Msg("Discarded video of failed analysis")
}

// Close releases everything in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
