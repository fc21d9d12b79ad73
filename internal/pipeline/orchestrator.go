// Package pipeline drives one ingestion run through acquisition, assembly,
// upload, analysis and persistence, reporting progress at every stage boundary.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"legalease/internal/acquire"
	"legalease/internal/analysis"
	"legalease/internal/logging"
	"legalease/internal/model"
)

var ErrOwnerRequired = errors.New("owner id is required")

const (
	progressAssembling = 0.10
	progressUploading  = 0.25
	progressUploaded   = 0.60
	progressAnalyzed   = 0.95
	progressDone       = 1.0
)

// ProgressFunc receives a snapshot after every stage transition.
type ProgressFunc func(model.RunStatus)

type Assembler interface {
	Assemble(ctx context.Context, pages []model.PageImage) (model.DocumentArtifact, error)
}

type Uploader interface {
	Upload(ctx context.Context, artifact model.DocumentArtifact, ownerID string) (model.StorageLocator, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, locator model.StorageLocator) (*model.StructuredReport, error)
}

// Reports persists a finished report; a nil record means the save failed and was already logged.
type Reports interface {
	Save(ctx context.Context, locator model.StorageLocator, report model.StructuredReport, ownerID string) *model.ReportRecord
}

type Deps struct {
	Assembler Assembler
	Uploader  Uploader
	Analyzer  Analyzer
	Reports   Reports
	Guard     Guard
	Metrics   *Metrics
	Logger    *slog.Logger
}

type Orchestrator struct {
	assembler Assembler
	uploader  Uploader
	analyzer  Analyzer
	reports   Reports
	guard     Guard
	metrics   *Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func New(d Deps) *Orchestrator {
	if d.Guard == nil {
		d.Guard = NewMemoryGuard()
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	return &Orchestrator{
		assembler: d.Assembler,
		uploader:  d.Uploader,
		analyzer:  d.Analyzer,
		reports:   d.Reports,
		guard:     d.Guard,
		metrics:   d.Metrics,
		logger:    d.Logger,
		tracer:    otel.Tracer("legalease/pipeline"),
		now:       time.Now,
	}
}

// Result is the terminal outcome of a run. Locator is set whenever the upload
// succeeded, even if a later stage failed.
type Result struct {
	Status  model.RunStatus
	Locator *model.StorageLocator
	Report  *model.StructuredReport
	Record  *model.ReportRecord
	Err     error
}

// Run is a claimed, not yet finished pipeline run.
type Run struct {
	o          *Orchestrator
	release    func()
	status     model.RunStatus
	logger     *slog.Logger
	onProgress ProgressFunc
}

// Begin claims the owner's single run slot. It fails with ErrOwnerRequired or ErrRunInProgress.
func (o *Orchestrator) Begin(ctx context.Context, ownerID string) (*Run, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrOwnerRequired
	}
	release, err := o.guard.Acquire(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	return &Run{
		o:       o,
		release: release,
		status: model.RunStatus{
			RunID:     id,
			OwnerID:   ownerID,
			Stage:     model.StageIdle,
			UpdatedAt: o.now().UTC(),
		},
		logger: o.logger.With("run_id", id, "owner_id", ownerID),
	}, nil
}

// Run claims the owner's slot and executes the pipeline to completion.
// The returned error is non-nil only when the run could not start.
func (o *Orchestrator) Run(ctx context.Context, ownerID string, src acquire.Source, onProgress ProgressFunc) (*Result, error) {
	run, err := o.Begin(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return run.Execute(ctx, src, onProgress), nil
}

func (r *Run) ID() string { return r.status.RunID }

// Status is the snapshot before Execute starts.
func (r *Run) Status() model.RunStatus { return r.status }

// Execute runs every stage and frees the owner's slot when done.
// ctx cancellation is honoured until assembly finishes; later stages run to a terminal state.
func (r *Run) Execute(ctx context.Context, src acquire.Source, onProgress ProgressFunc) *Result {
	defer r.release()
	r.onProgress = onProgress

	ctx, span := r.o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", r.status.RunID),
		attribute.String("owner.id", r.status.OwnerID),
	))
	defer span.End()

	res := r.execute(ctx, src)
	res.Status = r.status

	r.o.metrics.finishRun(res.Status.Stage)
	span.SetAttributes(attribute.String("run.outcome", string(res.Status.Stage)))
	if res.Err != nil {
		span.SetStatus(codes.Error, res.Err.Error())
	}
	return res
}

func (r *Run) execute(ctx context.Context, src acquire.Source) *Result {
	res := &Result{}
	owner := r.status.OwnerID

	r.transition(model.StageAcquiring, 0, "Waiting for pages")
	var in acquire.Input
	err := r.stage(ctx, model.StageAcquiring, func(ctx context.Context) error {
		var err error
		in, err = src.Acquire(ctx)
		return err
	})
	if ctx.Err() != nil || (err == nil && in.Cancelled()) {
		return r.cancel(res)
	}
	if err != nil {
		return r.fail(res, model.StageAcquiring, err)
	}

	var doc model.DocumentArtifact
	if in.Kind() == acquire.KindDocument {
		doc = *in.Document
	} else {
		r.transition(model.StageAssembling, progressAssembling, "Creating PDF")
		err := r.stage(ctx, model.StageAssembling, func(ctx context.Context) error {
			var err error
			doc, err = r.o.assembler.Assemble(ctx, in.Pages)
			return err
		})
		if err == nil {
			defer r.removeArtifact(doc)
		}
		if ctx.Err() != nil {
			return r.cancel(res)
		}
		if err != nil {
			return r.fail(res, model.StageAssembling, err)
		}
	}

	// From here on the run always reaches a terminal state.
	work := context.WithoutCancel(ctx)

	r.transition(model.StageUploading, progressUploading, "Uploading document")
	var loc model.StorageLocator
	if err := r.stage(work, model.StageUploading, func(ctx context.Context) error {
		var err error
		loc, err = r.o.uploader.Upload(ctx, doc, owner)
		return err
	}); err != nil {
		return r.fail(res, model.StageUploading, err)
	}
	res.Locator = &loc
	r.status.FileLink = loc.URL

	r.transition(model.StageAnalyzing, progressUploaded, "Analyzing document")
	var report *model.StructuredReport
	if err := r.stage(work, model.StageAnalyzing, func(ctx context.Context) error {
		var err error
		report, err = r.o.analyzer.Analyze(ctx, loc)
		return err
	}); err != nil {
		return r.fail(res, model.StageAnalyzing, err)
	}
	res.Report = report
	r.status.Report = report

	r.transition(model.StagePersisting, progressAnalyzed, "Saving report")
	_ = r.stage(work, model.StagePersisting, func(ctx context.Context) error {
		res.Record = r.o.reports.Save(ctx, loc, *report, owner)
		return nil
	})
	if res.Record != nil {
		r.status.RecordID = res.Record.ID
	} else {
		r.logger.Warn("run_report_not_saved", "file_link", loc.URL)
	}

	r.transition(model.StageSucceeded, progressDone, "Analysis complete")
	r.logger.Info("run_succeeded", "file_link", loc.URL, "record_id", r.status.RecordID)
	return res
}

func (r *Run) stage(ctx context.Context, stage model.Stage, fn func(context.Context) error) error {
	ctx, span := r.o.tracer.Start(ctx, "pipeline."+string(stage))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	r.o.metrics.observeStage(stage, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Run) transition(stage model.Stage, progress float64, msg string) {
	r.status.Stage = stage
	r.status.Progress = progress
	r.status.Message = msg
	r.status.UpdatedAt = r.o.now().UTC()
	r.logger.Info("run_stage", "stage", string(stage), "progress", progress)
	if r.onProgress != nil {
		r.onProgress(r.status)
	}
}

func (r *Run) cancel(res *Result) *Result {
	r.logger.Info("run_cancelled", "stage", string(r.status.Stage))
	r.transition(model.StageCancelled, r.status.Progress, "")
	return res
}

func (r *Run) fail(res *Result, stage model.Stage, err error) *Result {
	r.logger.Error("run_failed", "stage", string(stage), "error", err.Error())
	res.Err = err
	r.status.FailedAt = stage
	r.status.Error = errorKind(stage, err)
	r.transition(model.StageFailed, r.status.Progress, userMessage(stage, err))
	return res
}

// removeArtifact deletes a document this run assembled. Picked documents belong to the caller.
func (r *Run) removeArtifact(doc model.DocumentArtifact) {
	if err := os.Remove(doc.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("artifact_remove_failed", "path", doc.Path, "error", err.Error())
	}
}

func errorKind(stage model.Stage, err error) string {
	var se *analysis.ServiceError
	switch {
	case errors.As(err, &se):
		return "service_reported"
	case errors.Is(err, analysis.ErrMalformedResponse):
		return "malformed_response"
	}

	switch stage {
	case model.StageAcquiring:
		return "acquisition_error"
	case model.StageAssembling:
		return "conversion_error"
	case model.StageUploading:
		return "upload_error"
	case model.StageAnalyzing:
		return "analysis_error"
	}
	return "internal_error"
}

// userMessage is the short text shown for a failed run. Service-reported analysis details pass through unchanged.
func userMessage(stage model.Stage, err error) string {
	var se *analysis.ServiceError
	switch {
	case errors.As(err, &se):
		return se.Detail
	case errors.Is(err, analysis.ErrMalformedResponse):
		return "Failed to process the report data from the server."
	case errors.Is(err, acquire.ErrTooManyPages):
		return "Too many pages. Please scan fewer pages."
	case errors.Is(err, acquire.ErrNotDocument):
		return "The selected file is not a PDF document."
	}

	switch stage {
	case model.StageAcquiring:
		return "Could not read the selected pages."
	case model.StageAssembling:
		return "Failed to create the PDF. Please try again."
	case model.StageUploading:
		return "Failed to upload the document. Please try again."
	case model.StageAnalyzing:
		return "Failed to analyze the document. Please try again."
	}
	return "Something went wrong. Please try again."
}
