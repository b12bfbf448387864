// Package pipeline turns a finished capture run into classified, reconciled
// results and raises the disease alert.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/capture"
	"github.com/mikeyg42/plantwatch/internal/classify"
	"github.com/mikeyg42/plantwatch/internal/events"
	"github.com/mikeyg42/plantwatch/internal/metrics"
	"github.com/mikeyg42/plantwatch/internal/notification"
	"github.com/mikeyg42/plantwatch/internal/reconcile"
	"github.com/mikeyg42/plantwatch/internal/report"
)

// Reconciler attributes capture folders to cameras.
type Reconciler interface {
	Reconcile(unavailable []int) (reconcile.Plan, error)
}

// Archive stores a processed batch. Failures are logged, never fatal.
type Archive interface {
	Archive(ctx context.Context, run capture.Result, results []report.Result) error
}

// Config holds the pipeline's tunables.
type Config struct {
	Threshold  float64
	Recipients []string
}

// Pipeline classifies the images of one run.
type Pipeline struct {
	reconciler Reconciler
	classifier classify.Classifier
	mailer     notification.Mailer
	emitter    events.Emitter
	cfg        Config

	archive Archive
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func New(reconciler Reconciler, classifier classify.Classifier, mailer notification.Mailer, emitter events.Emitter, cfg Config) *Pipeline {
	if emitter == nil {
		emitter = events.Discard
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = report.Threshold
	}
	return &Pipeline{
		reconciler: reconciler,
		classifier: classifier,
		mailer:     mailer,
		emitter:    emitter,
		cfg:        cfg,
		logger:     zap.L().Named("pipeline"),
	}
}

// WithArchive stores every processed batch in a.
func (p *Pipeline) WithArchive(a Archive) *Pipeline {
	p.archive = a
	return p
}

func (p *Pipeline) WithMetrics(m *metrics.Metrics) *Pipeline {
	p.metrics = m
	return p
}

func (p *Pipeline) WithLogger(l *zap.Logger) *Pipeline {
	if l != nil {
		p.logger = l
	}
	return p
}

// Process reconciles the run's folders, classifies each capture, alerts once
// when any camera shows disease, and always finishes with a batch-complete
// event.
func (p *Pipeline) Process(ctx context.Context, run capture.Result) []report.Result {
	logger := p.logger.With(zap.String("run_id", run.RunID))

	p.emit(events.NewProcessingStatus(true), run.RunID)
	p.metrics.SetProcessing(true)

	results := p.classifyAll(ctx, logger, run)

	if report.AnyDisease(results) {
		p.alert(ctx, logger, run.RunID, results)
	}

	if p.archive != nil {
		if err := p.archive.Archive(ctx, run, results); err != nil {
			logger.Warn("Failed to archive batch", zap.Error(err))
		}
	}

	p.emit(events.NewBatchComplete(results), run.RunID)
	p.emit(events.NewProcessingStatus(false), run.RunID)
	p.metrics.SetProcessing(false)

	logger.Info("Batch processed",
		zap.Int("results", len(results)),
		zap.Int("diseased", len(notification.Diseased(results))))
	return results
}

func (p *Pipeline) classifyAll(ctx context.Context, logger *zap.Logger, run capture.Result) []report.Result {
	plan, err := p.reconciler.Reconcile(run.Unavailable)
	if err != nil {
		logger.Error("Failed to reconcile capture folders", zap.Error(err))
		p.emit(events.NewError(fmt.Sprintf("Failed to read capture folders: %v", err)), run.RunID)
		return nil
	}

	for _, gap := range plan.Gaps {
		logger.Warn("Folder dropped",
			zap.String("folder", gap.Folder.Name),
			zap.Int("camera", gap.Camera),
			zap.Error(gap.Err))
	}

	results := make([]report.Result, 0, len(plan.Entries))
	for _, entry := range plan.Entries {
		if !entry.HasImage() {
			results = append(results, report.NoCapture(entry.Folder.Name))
			continue
		}

		res, err := p.classifyEntry(ctx, entry)
		if err != nil {
			p.metrics.ClassificationFailed()
			logger.Error("Classification failed",
				zap.String("folder", entry.Folder.Name),
				zap.Int("camera", entry.Camera),
				zap.Error(err))
			p.emit(events.NewError(fmt.Sprintf("Failed to classify camera %d: %v", entry.Camera, err)), run.RunID)
			p.emit(events.NewProcessingStatus(false), run.RunID)
			continue
		}

		p.metrics.ClassificationSucceeded()
		for _, d := range res.DiseaseTypes {
			p.metrics.DiseaseDetected(d.Label)
		}
		results = append(results, res)
	}
	return results
}

func (p *Pipeline) classifyEntry(ctx context.Context, entry reconcile.Entry) (report.Result, error) {
	image, err := os.ReadFile(entry.ImagePath)
	if err != nil {
		return report.Result{}, fmt.Errorf("failed to read image: %w", err)
	}

	scores, err := p.classifier.Classify(ctx, filepath.Base(entry.ImagePath), image)
	if err != nil {
		return report.Result{}, err
	}

	return report.Classified(entry.Folder.Name, entry.Record, entry.ImagePath, image, scores, p.cfg.Threshold), nil
}

func (p *Pipeline) alert(ctx context.Context, logger *zap.Logger, runID string, results []report.Result) {
	if p.mailer == nil {
		logger.Warn("Disease detected but no mailer is configured")
		return
	}

	err := p.mailer.SendAlert(ctx, p.cfg.Recipients, results)
	p.metrics.AlertSent(err)
	if err != nil {
		logger.Error("Failed to send disease alert", zap.Error(err))
		p.emit(events.NewError(fmt.Sprintf("Failed to send disease alert: %v", err)), runID)
		return
	}
	logger.Info("Disease alert sent", zap.Strings("recipients", p.cfg.Recipients))
}

func (p *Pipeline) emit(e events.Event, runID string) {
	p.emitter.Emit(e.WithRun(runID))
}
