package mocks

import (
	"context"

	"legalease/internal/model"
	"legalease/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) Save(ctx context.Context, locator model.StorageLocator, report model.StructuredReport, ownerID string) *model.ReportRecord {
	args := m.Called(ctx, locator, report, ownerID)
	rec, _ := args.Get(0).(*model.ReportRecord)
	return rec
}

func (m *MockReportService) List(ctx context.Context, ownerID string, limit, offset int) (*service.ReportListResult, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReportListResult), args.Error(1)
}

func (m *MockReportService) Get(ctx context.Context, ownerID string, id int64) (*model.ReportRecord, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReportRecord), args.Error(1)
}
