package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"legalease/internal/model"
	"legalease/internal/repository"
)

// ReportPostgres is a PostgreSQL implementation of repository.ReportRepository.
// The report is stored as JSONB; column names keep the camelCase of the shared table.
type ReportPostgres struct {
	db *sql.DB
}

func NewReportPostgres(db *sql.DB) *ReportPostgres {
	return &ReportPostgres{db: db}
}

var _ repository.ReportRepository = (*ReportPostgres)(nil)

// Create inserts a row and returns it as stored.
func (r *ReportPostgres) Create(ctx context.Context, rec *model.ReportRecord) (*model.ReportRecord, error) {
	body, err := json.Marshal(rec.Report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	const q = `
		INSERT INTO file_to_report ("fileLink", report, "userId")
		VALUES ($1, $2::jsonb, $3)
		RETURNING id, created_at, "fileLink", report, "userId"
	`
	return scanRecord(r.db.QueryRowContext(ctx, q, rec.FileLink, string(body), rec.UserID))
}

// ListByOwner returns the owner's records, newest first.
func (r *ReportPostgres) ListByOwner(ctx context.Context, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.ReportRecord], error) {
	const qCount = `SELECT COUNT(*) FROM file_to_report WHERE "userId" = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, ownerID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT id, created_at, "fileLink", report, "userId"
		FROM file_to_report
		WHERE "userId" = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, ownerID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.ReportRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.ReportRecord]{Items: items, Total: total}, nil
}

// FindByOwnerAndID fetches one record of ownerID.
func (r *ReportPostgres) FindByOwnerAndID(ctx context.Context, ownerID string, id int64) (*model.ReportRecord, error) {
	const q = `
		SELECT id, created_at, "fileLink", report, "userId"
		FROM file_to_report
		WHERE id = $1 AND "userId" = $2
	`
	return scanRecord(r.db.QueryRowContext(ctx, q, id, ownerID))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*model.ReportRecord, error) {
	var (
		out  model.ReportRecord
		body []byte
	)
	if err := s.Scan(&out.ID, &out.CreatedAt, &out.FileLink, &body, &out.UserID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &out.Report); err != nil {
		return nil, fmt.Errorf("decode report %d: %w", out.ID, err)
	}
	return &out, nil
}
