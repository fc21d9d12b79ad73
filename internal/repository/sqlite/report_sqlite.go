// Package sqlite is the embedded SQLite implementation of the report repository.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"legalease/internal/model"
	"legalease/internal/repository"
)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02 15:04:05.000000000"

type ReportSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewReportSQLite(db *sql.DB) *ReportSQLite {
	return &ReportSQLite{db: db, now: time.Now}
}

var _ repository.ReportRepository = (*ReportSQLite)(nil)

func (r *ReportSQLite) Create(ctx context.Context, rec *model.ReportRecord) (*model.ReportRecord, error) {
	body, err := json.Marshal(rec.Report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	created := r.now().UTC()

	const q = `INSERT INTO file_to_report (created_at, "fileLink", report, "userId") VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, created.Format(timeLayout), rec.FileLink, string(body), rec.UserID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	out := *rec
	out.ID = id
	out.CreatedAt = created
	return &out, nil
}

func (r *ReportSQLite) ListByOwner(ctx context.Context, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.ReportRecord], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_to_report WHERE "userId" = ?`, ownerID).Scan(&total); err != nil {
		return nil, err
	}

	const q = `
		SELECT id, created_at, "fileLink", report, "userId"
		FROM file_to_report
		WHERE "userId" = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, q, ownerID, pq.Limit, pq.Offset)
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

func (r *ReportSQLite) FindByOwnerAndID(ctx context.Context, ownerID string, id int64) (*model.ReportRecord, error) {
	const q = `
		SELECT id, created_at, "fileLink", report, "userId"
		FROM file_to_report
		WHERE id = ? AND "userId" = ?
	`
	return scanRecord(r.db.QueryRowContext(ctx, q, id, ownerID))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*model.ReportRecord, error) {
	var (
		out     model.ReportRecord
		created string
		body    string
	)
	if err := s.Scan(&out.ID, &created, &out.FileLink, &body, &out.UserID); err != nil {
		return nil, err
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("record %d created_at: %w", out.ID, err)
	}
	out.CreatedAt = t
	if err := json.Unmarshal([]byte(body), &out.Report); err != nil {
		return nil, fmt.Errorf("decode report %d: %w", out.ID, err)
	}
	return &out, nil
}

// parseTime accepts the stored layout and RFC 3339, which the driver yields for DATETIME columns.
func parseTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(timeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
