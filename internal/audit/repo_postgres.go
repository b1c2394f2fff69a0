package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// Storage: table lead_audit_events, INSERT-only from this package.
const schema = `CREATE TABLE IF NOT EXISTS lead_audit_events (
  id            TEXT PRIMARY KEY,
  scope         TEXT NOT NULL,
  type          TEXT NOT NULL,
  actor_user_id TEXT NOT NULL DEFAULT '',
  actor_role    TEXT NOT NULL DEFAULT '',
  ip_address    TEXT NOT NULL DEFAULT '',
  lead_id       TEXT NOT NULL DEFAULT '',
  field         TEXT NOT NULL DEFAULT '',
  message       TEXT NOT NULL DEFAULT '',
  created_at    TIMESTAMPTZ NOT NULL
)`

// PostgresRepo appends events to lead_audit_events.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// EnsureSchema creates the audit table if missing.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO lead_audit_events
  (id, scope, type, actor_user_id, actor_role, ip_address, lead_id, field, message, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.Scope, string(e.Type), e.ActorUserID, e.ActorRole, e.IPAddress,
		e.LeadID, e.Field, e.Message, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
