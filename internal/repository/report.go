// Package repository contains data access abstractions for analysis reports.
// Implementations live in subpackages (postgres, sqlite) inside this directory.
package repository

import (
	"context"

	"legalease/internal/model"
)

// ReportRepository persists (locator, report, owner) records using SQL queries only.
// Every read is scoped to a single owner.
type ReportRepository interface {
	// Create inserts a record. ID and CreatedAt are assigned by the store.
	Create(ctx context.Context, rec *model.ReportRecord) (*model.ReportRecord, error)

	// ListByOwner returns one page of the owner's records, newest first, and the owner's total.
	ListByOwner(ctx context.Context, ownerID string, pq PageQuery) (*PageResult[model.ReportRecord], error)

	// FindByOwnerAndID returns sql.ErrNoRows when the record does not exist or belongs to someone else.
	FindByOwnerAndID(ctx context.Context, ownerID string, id int64) (*model.ReportRecord, error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
