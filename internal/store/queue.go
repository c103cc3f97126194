package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	serrors "github.com/Aman-CERP/issuesync/internal/errors"
)

// NewQueueItem builds an unsaved queue item. InsertQueueItems assigns UUID and CreatedAt.
func NewQueueItem(docType, docID, docIDType, docRouting string) *QueueItem {
	return &QueueItem{
		DocType:    docType,
		DocID:      docID,
		DocIDType:  docIDType,
		DocRouting: docRouting,
	}
}

// InsertQueueItems appends items to es_queue. Items without a UUID get a new
// time-ordered one; items without CreatedAt get now. Rows are never merged:
// queuing the same DocID twice yields two rows.
func (s *Session) InsertQueueItems(ctx context.Context, now time.Time, items ...*QueueItem) error {
	if len(items) == 0 {
		return nil
	}
	q, err := s.querier(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.UUID == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return serrors.InternalError("failed to generate queue uuid", err)
			}
			item.UUID = id.String()
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO es_queue (uuid, doc_type, doc_id, doc_id_type, doc_routing, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			item.UUID, item.DocType, item.DocID, nullString(item.DocIDType), nullString(item.DocRouting),
			item.CreatedAt.UnixMilli())
		if err != nil {
			return serrors.StoreError("failed to insert queue item", err).WithDetail("doc_id", item.DocID)
		}
	}
	return nil
}

// DeleteQueueItems removes the given rows by uuid.
func (s *Session) DeleteQueueItems(ctx context.Context, items ...*QueueItem) error {
	if len(items) == 0 {
		return nil
	}
	q, err := s.querier(ctx)
	if err != nil {
		return err
	}
	for _, chunk := range chunks(items, maxParams) {
		args := make([]any, len(chunk))
		for i, item := range chunk {
			args[i] = item.UUID
		}
		if _, err := q.ExecContext(ctx,
			`DELETE FROM es_queue WHERE uuid IN (`+placeholders(len(chunk))+`)`, args...); err != nil {
			return serrors.StoreError("failed to delete queue items", err)
		}
	}
	return nil
}

// SelectQueueForRecovery returns up to limit rows created at or before before, oldest first.
func (s *Session) SelectQueueForRecovery(ctx context.Context, before time.Time, limit int) ([]*QueueItem, error) {
	q, err := s.querier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `
		SELECT uuid, doc_type, doc_id, doc_id_type, doc_routing, created_at
		FROM es_queue
		WHERE created_at <= ?
		ORDER BY created_at ASC, uuid ASC
		LIMIT ?`, before.UnixMilli(), limit)
	if err != nil {
		return nil, serrors.StoreError("failed to select queue items", err)
	}
	defer rows.Close()

	var items []*QueueItem
	for rows.Next() {
		var (
			item            QueueItem
			idType, routing sql.NullString
			created         int64
		)
		if err := rows.Scan(&item.UUID, &item.DocType, &item.DocID, &idType, &routing, &created); err != nil {
			return nil, serrors.StoreError("failed to scan queue item", err)
		}
		item.DocIDType = idType.String
		item.DocRouting = routing.String
		item.CreatedAt = time.UnixMilli(created).UTC()
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, serrors.StoreError("failed to select queue items", err)
	}
	return items, nil
}

// CountQueue returns the number of queued rows.
func (s *Session) CountQueue(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM es_queue`)
}

// OldestQueueItemAt returns the creation time of the oldest row, or the zero time for an empty queue.
func (s *Session) OldestQueueItemAt(ctx context.Context) (time.Time, error) {
	q, err := s.querier(ctx)
	if err != nil {
		return time.Time{}, err
	}
	var oldest sql.NullInt64
	if err := q.QueryRowContext(ctx, `SELECT MIN(created_at) FROM es_queue`).Scan(&oldest); err != nil {
		return time.Time{}, serrors.StoreError("failed to read queue age", err)
	}
	return fromMillis(oldest), nil
}

// maxParams keeps IN lists well under SQLite's bound-parameter limit.
const maxParams = 500

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func chunks[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
