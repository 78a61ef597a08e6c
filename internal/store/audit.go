package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// AuditLog is a persisted record of an administrative or sensitive action.
type AuditLog struct {
	ID           pgtype.UUID        `json:"id"`
	ActorKind    string             `json:"actor_kind"`
	ActorUserID  pgtype.UUID        `json:"actor_user_id"`
	Action       string             `json:"action"`
	ResourceType string             `json:"resource_type"`
	ResourceID   pgtype.Text        `json:"resource_id"`
	Method       string             `json:"method"`
	Path         string             `json:"path"`
	Route        pgtype.Text        `json:"route"`
	Status       int32              `json:"status"`
	IP           pgtype.Text        `json:"ip"`
	UserAgent    pgtype.Text        `json:"user_agent"`
	RequestID    pgtype.Text        `json:"request_id"`
	Metadata     []byte             `json:"metadata"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
}

const insertAuditLogSQL = `
INSERT INTO audit_logs (
    actor_kind, actor_user_id, action, resource_type, resource_id,
    method, path, route, status, ip, user_agent, request_id, metadata
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id, actor_kind, actor_user_id, action, resource_type, resource_id,
    method, path, route, status, ip, user_agent, request_id, metadata, created_at`

type InsertAuditLogParams struct {
	ActorKind    string
	ActorUserID  pgtype.UUID
	Action       string
	ResourceType string
	ResourceID   pgtype.Text
	Method       string
	Path         string
	Route        pgtype.Text
	Status       int32
	IP           pgtype.Text
	UserAgent    pgtype.Text
	RequestID    pgtype.Text
	Metadata     []byte
}

func (q *Queries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (AuditLog, error) {
	row := q.db.QueryRow(ctx, insertAuditLogSQL,
		arg.ActorKind, arg.ActorUserID, arg.Action, arg.ResourceType, arg.ResourceID,
		arg.Method, arg.Path, arg.Route, arg.Status, arg.IP, arg.UserAgent, arg.RequestID, arg.Metadata,
	)
	var a AuditLog
	err := row.Scan(&a.ID, &a.ActorKind, &a.ActorUserID, &a.Action, &a.ResourceType, &a.ResourceID,
		&a.Method, &a.Path, &a.Route, &a.Status, &a.IP, &a.UserAgent, &a.RequestID, &a.Metadata, &a.CreatedAt)
	return a, err
}

const listAuditLogsSQL = `
SELECT id, actor_kind, actor_user_id, action, resource_type, resource_id,
    method, path, route, status, ip, user_agent, request_id, metadata, created_at
FROM audit_logs
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`

type ListAuditLogsParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListAuditLogs(ctx context.Context, arg ListAuditLogsParams) ([]AuditLog, error) {
	rows, err := q.db.Query(ctx, listAuditLogsSQL, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditLog
	for rows.Next() {
		var a AuditLog
		if err := rows.Scan(&a.ID, &a.ActorKind, &a.ActorUserID, &a.Action, &a.ResourceType, &a.ResourceID,
			&a.Method, &a.Path, &a.Route, &a.Status, &a.IP, &a.UserAgent, &a.RequestID, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
