package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"legalease/internal/model"
	"legalease/internal/repository"
)

var (
	ErrOwnerRequired = errors.New("owner id is required")
	ErrNotFound      = errors.New("report not found")
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// ReportListResult is the service-level DTO for a page of reports.
type ReportListResult struct {
	Items []model.ReportRecord `json:"data"`
	Total int                  `json:"total"`
}

// ReportService defines the use cases around persisted analysis reports.
type ReportService interface {
	// Save stores a report for ownerID. Failures are logged and reported as a nil record.
	Save(ctx context.Context, locator model.StorageLocator, report model.StructuredReport, ownerID string) *model.ReportRecord

	// List returns the owner's reports, newest first.
	List(ctx context.Context, ownerID string, limit, offset int) (*ReportListResult, error)

	// Get returns one of the owner's reports.
	Get(ctx context.Context, ownerID string, id int64) (*model.ReportRecord, error)
}

type reportService struct {
	repo   repository.ReportRepository
	logger *slog.Logger
}

func NewReportService(repo repository.ReportRepository, logger *slog.Logger) ReportService {
	return &reportService{repo: repo, logger: logger}
}

func (s *reportService) Save(ctx context.Context, locator model.StorageLocator, report model.StructuredReport, ownerID string) *model.ReportRecord {
	if strings.TrimSpace(ownerID) == "" {
		s.logger.Error("report_save_failed", "file_link", locator.URL, "error", ErrOwnerRequired.Error())
		return nil
	}
	rec, err := s.repo.Create(ctx, &model.ReportRecord{
		FileLink: locator.URL,
		Report:   report,
		UserID:   ownerID,
	})
	if err != nil {
		s.logger.Error("report_save_failed", "owner_id", ownerID, "file_link", locator.URL, "error", err.Error())
		return nil
	}
	s.logger.Info("report_saved", "owner_id", ownerID, "record_id", rec.ID)
	return rec
}

func (s *reportService) List(ctx context.Context, ownerID string, limit, offset int) (*ReportListResult, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrOwnerRequired
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.ListByOwner(ctx, ownerID, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &ReportListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *reportService) Get(ctx context.Context, ownerID string, id int64) (*model.ReportRecord, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrOwnerRequired
	}
	rec, err := s.repo.FindByOwnerAndID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}
