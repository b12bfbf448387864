package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/capture"
	"github.com/mikeyg42/plantwatch/internal/report"
)

// RunStore persists runs and their results.
type RunStore interface {
	SaveRun(ctx context.Context, run capture.Result) error
	SaveResults(ctx context.Context, runID string, results []report.Result, imageKeys map[string]string) error
}

// ImageUploader stores one captured image and returns its key.
type ImageUploader interface {
	PutImage(ctx context.Context, runID string, camera int, filePath string) (string, error)
}

// Archiver uploads a batch's images and records the run. Either backend may
// be nil.
type Archiver struct {
	runs   RunStore
	images ImageUploader
	logger *zap.Logger
}

func NewArchiver(runs RunStore, images ImageUploader) *Archiver {
	return &Archiver{
		runs:   runs,
		images: images,
		logger: zap.L().Named("archiver"),
	}
}

// Archive keeps going past individual failures and returns them joined.
func (a *Archiver) Archive(ctx context.Context, run capture.Result, results []report.Result) error {
	var errs []error

	keys := make(map[string]string)
	if a.images != nil {
		for _, r := range results {
			if r.ImagePath == "" || r.Camera == 0 {
				continue
			}
			key, err := a.images.PutImage(ctx, run.RunID, r.Camera, r.ImagePath)
			if err != nil {
				a.logger.Warn("Image upload failed",
					zap.String("run_id", run.RunID),
					zap.Int("camera", r.Camera),
					zap.Error(err))
				errs = append(errs, err)
				continue
			}
			keys[r.Folder] = key
		}
	}

	if a.runs != nil {
		if err := a.runs.SaveRun(ctx, run); err != nil {
			errs = append(errs, err)
		} else if err := a.runs.SaveResults(ctx, run.RunID, results, keys); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
