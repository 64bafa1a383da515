package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/kdimtricp/brokeshot/internal/models"
)

var (
	ErrNotFound        = errors.New("shot not found")
	ErrAlreadyRecorded = errors.New("capture already recorded")
)

// HistoryRepository is the append-only store of scored captures. A capture
// is identified by its capture time and video path.
type HistoryRepository struct {
	db *DB
}

func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

const shotColumns = `id, captured_at, video_path, score, is_broke, max_score, message, server_timestamp, phases`

func (r *HistoryRepository) Append(ctx context.Context, capture models.ShotCapture, result models.AnalysisResult) (*models.ScoredCapture, error) {
	phases, err := json.Marshal(result.PerPhase)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal phases: %w", err)
	}

	scored := &models.ScoredCapture{
		ID: uuid.New().String(),
		Capture: models.ShotCapture{
			CapturedAt: capture.CapturedAt.UTC(),
			Video:      capture.Video,
		},
		Result: result,
	}

	_, err = r.db.conn.ExecContext(ctx, `
		INSERT INTO shots (`+shotColumns+`, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scored.ID,
		scored.Capture.CapturedAt.UnixNano(),
		scored.Capture.Video.Path,
		result.OverallScore,
		result.IsBroke,
		result.MaxScore,
		result.DiagnosticMessage,
		result.ServerTimestamp,
		string(phases),
		time.Now().UTC().UnixNano(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrAlreadyRecorded
		}
		return nil, fmt.Errorf("failed to insert shot: %w", err)
	}

	return scored, nil
}

// ListAll returns every scored capture, most recent capture first.
func (r *HistoryRepository) ListAll(ctx context.Context) ([]models.ScoredCapture, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT `+shotColumns+` FROM shots ORDER BY captured_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list shots: %w", err)
	}
	defer rows.Close()

	shots := []models.ScoredCapture{}
	for rows.Next() {
		shot, err := scanShot(rows)
		if err != nil {
			return nil, err
		}
		shots = append(shots, *shot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shots: %w", err)
	}

	return shots, nil
}

func (r *HistoryRepository) FindByCapture(ctx context.Context, capture models.ShotCapture) (*models.ScoredCapture, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT `+shotColumns+` FROM shots WHERE captured_at = ? AND video_path = ?`,
		capture.CapturedAt.UTC().UnixNano(), capture.Video.Path)
	return scanOne(row)
}

func (r *HistoryRepository) GetByID(ctx context.Context, id string) (*models.ScoredCapture, error) {
	row := r.db.conn.QueryRowContext(ctx, `SELECT `+shotColumns+` FROM shots WHERE id = ?`, id)
	return scanOne(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*models.ScoredCapture, error) {
	shot, err := scanShot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return shot, err
}

func scanShot(s scanner) (*models.ScoredCapture, error) {
	var (
		shot       models.ScoredCapture
		capturedAt int64
		videoPath  string
		phases     string
	)

	err := s.Scan(
		&shot.ID,
		&capturedAt,
		&videoPath,
		&shot.Result.OverallScore,
		&shot.Result.IsBroke,
		&shot.Result.MaxScore,
		&shot.Result.DiagnosticMessage,
		&shot.Result.ServerTimestamp,
		&phases,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan shot: %w", err)
	}

	if err := json.Unmarshal([]byte(phases), &shot.Result.PerPhase); err != nil {
		return nil, fmt.Errorf("failed to unmarshal phases for shot %s: %w", shot.ID, err)
	}

	shot.Capture = models.ShotCapture{
		CapturedAt: time.Unix(0, capturedAt).UTC(),
		Video:      models.VideoReference{Path: videoPath},
	}

	return &shot, nil
}
