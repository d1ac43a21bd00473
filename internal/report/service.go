// Package report persists daily work reports, including the channel
// message map the publish engine produces.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/reportbot/internal/db"
	"github.com/fieldops/reportbot/internal/publish"
)

var ErrNotFound = errors.New("report not found")

type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "report")),
	}
}

const reportColumns = `id, author_id, object_name, work_done, materials, photo_ids,
	channel_messages, report_date, created_at, updated_at`

func (s *Service) scan(row pgx.Row) (Report, error) {
	var r Report
	var id, authorID pgtype.UUID
	var channelMessages []byte
	var reportDate pgtype.Date
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&id, &authorID, &r.ObjectName, &r.WorkDone, &r.Materials, &r.PhotoIDs,
		&channelMessages, &reportDate, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, err
	}
	r.ID = db.UUIDToString(id)
	r.AuthorID = db.UUIDToString(authorID)
	r.ChannelMessages = publish.ChannelMessageMap{}
	if len(channelMessages) > 0 {
		if err := json.Unmarshal(channelMessages, &r.ChannelMessages); err != nil {
			return Report{}, fmt.Errorf("decode channel messages: %w", err)
		}
	}
	if reportDate.Valid {
		r.ReportDate = reportDate.Time
	}
	r.CreatedAt = db.TimeFromPg(createdAt)
	r.UpdatedAt = db.TimeFromPg(updatedAt)
	return r, nil
}

// Create stores a new report with an empty channel message map.
func (s *Service) Create(ctx context.Context, params CreateParams) (Report, error) {
	if s.pool == nil {
		return Report{}, fmt.Errorf("report pool not configured")
	}
	authorID, err := db.ParseUUID(params.AuthorID)
	if err != nil {
		return Report{}, err
	}
	date := params.ReportDate
	if date.IsZero() {
		date = time.Now()
	}
	photoIDs := params.PhotoIDs
	if photoIDs == nil {
		photoIDs = []string{}
	}
	var id pgtype.UUID
	err = s.pool.QueryRow(ctx, `
		INSERT INTO reports (author_id, object_name, work_done, materials, photo_ids, report_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		authorID, strings.TrimSpace(params.ObjectName), params.WorkDone, params.Materials,
		photoIDs, pgtype.Date{Time: date, Valid: true},
	).Scan(&id)
	if err != nil {
		return Report{}, err
	}
	return s.Get(ctx, db.UUIDToString(id))
}

// Get loads one report.
func (s *Service) Get(ctx context.Context, id string) (Report, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Report{}, err
	}
	return s.scan(s.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1`, pgID))
}

// UpdateBody edits report body fields; nil pointers leave fields unchanged.
func (s *Service) UpdateBody(ctx context.Context, id string, params UpdateParams) (Report, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return Report{}, err
	}
	sets := []string{"updated_at = now()"}
	args := []any{pgID}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if params.ObjectName != nil {
		add("object_name", strings.TrimSpace(*params.ObjectName))
	}
	if params.WorkDone != nil {
		add("work_done", *params.WorkDone)
	}
	if params.Materials != nil {
		add("materials", *params.Materials)
	}
	if params.PhotoIDs != nil {
		add("photo_ids", params.PhotoIDs)
	}
	query := `UPDATE reports SET ` + strings.Join(sets, ", ") + ` WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return Report{}, err
	}
	if tag.RowsAffected() == 0 {
		return Report{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

// ReplaceChannelMessages swaps the persisted channel message map in a
// single UPDATE, so readers never observe a mix of old and new postings.
func (s *Service) ReplaceChannelMessages(ctx context.Context, id string, m publish.ChannelMessageMap) error {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return err
	}
	if m == nil {
		m = publish.ChannelMessageMap{}
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode channel messages: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET channel_messages = $2, updated_at = now() WHERE id = $1`, pgID, encoded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a report record. Callers delete the fan-out postings
// first via the publish engine.
func (s *Service) Delete(ctx context.Context, id string) error {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1`, pgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByAuthor returns a page of the author's reports, newest first.
func (s *Service) ListByAuthor(ctx context.Context, authorID string, limit, offset int) ([]Report, error) {
	pgID, err := db.ParseUUID(authorID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE author_id = $1
		 ORDER BY report_date DESC, created_at DESC LIMIT $2 OFFSET $3`,
		pgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collect(rows)
}

// CountByAuthor returns the author's total report count.
func (s *Service) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	pgID, err := db.ParseUUID(authorID)
	if err != nil {
		return 0, err
	}
	var count int
	err = s.pool.QueryRow(ctx,
		`SELECT count(*) FROM reports WHERE author_id = $1`, pgID).Scan(&count)
	return count, err
}

// HasReportOn reports whether the author filed on the given day.
func (s *Service) HasReportOn(ctx context.Context, authorID string, day time.Time) (bool, error) {
	pgID, err := db.ParseUUID(authorID)
	if err != nil {
		return false, err
	}
	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM reports WHERE author_id = $1 AND report_date = $2)`,
		pgID, pgtype.Date{Time: day, Valid: true}).Scan(&exists)
	return exists, err
}

// MissingOn lists active users without a report on the given day; the
// reminder trigger notifies each of them.
func (s *Service) MissingOn(ctx context.Context, day time.Time) ([]MissingEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.tg_chat_id, u.name, u.position
		FROM users u
		WHERE u.is_active
		  AND u.tg_chat_id <> ''
		  AND NOT EXISTS (
			SELECT 1 FROM reports r
			WHERE r.author_id = u.id AND r.report_date = $1
		  )
		ORDER BY u.name`,
		pgtype.Date{Time: day, Valid: true})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MissingEntry
	for rows.Next() {
		var e MissingEntry
		var id pgtype.UUID
		if err := rows.Scan(&id, &e.TGChatID, &e.Name, &e.Position); err != nil {
			return nil, err
		}
		e.UserID = db.UUIDToString(id)
		items = append(items, e)
	}
	return items, rows.Err()
}

// GetStats summarizes report volume for the ops surface.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	var last pgtype.Timestamptz
	err := s.pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE report_date = CURRENT_DATE),
		       COALESCE(max(created_at), 'epoch'::timestamptz)
		FROM reports`).Scan(&stats.Total, &stats.Today, &last)
	if err != nil {
		return Stats{}, err
	}
	stats.LastReport = db.TimeFromPg(last)
	return stats, nil
}

func (s *Service) collect(rows pgx.Rows) ([]Report, error) {
	var items []Report
	for rows.Next() {
		r, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
