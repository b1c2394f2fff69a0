package leads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"leadtracker/pkg/utils"

	"github.com/google/uuid"
)

// NOTE: This store assumes the leads table below. EnsureSchema creates it
// for local and test databases; production schemas are managed externally.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS leads (
  id                   TEXT PRIMARY KEY,
  user_id              TEXT NOT NULL,
  lead_date            DATE NOT NULL,
  name                 TEXT NOT NULL DEFAULT '',
  salesperson_name     TEXT NOT NULL DEFAULT '',
  lead_source          TEXT NOT NULL,
  other_source         TEXT,
  phone                TEXT NOT NULL DEFAULT '',
  email                TEXT NOT NULL DEFAULT '',
  country              TEXT NOT NULL DEFAULT '',
  city                 TEXT NOT NULL DEFAULT '',
  client_type          TEXT NOT NULL,
  service_pitch        TEXT NOT NULL,
  first_message_sent   BOOLEAN NOT NULL DEFAULT FALSE,
  reply_received       BOOLEAN NOT NULL DEFAULT FALSE,
  seen                 BOOLEAN NOT NULL DEFAULT FALSE,
  interested           BOOLEAN NOT NULL DEFAULT FALSE,
  follow_up_needed     BOOLEAN NOT NULL DEFAULT FALSE,
  follow_up_date       DATE,
  screenshot_url       TEXT,
  screenshot_file_name TEXT,
  notes                TEXT NOT NULL DEFAULT '',
  status               TEXT NOT NULL DEFAULT 'new',
  deal_value           NUMERIC(14,2),
  reason_lost          TEXT,
  other_reason_lost    TEXT,
  created_at           TIMESTAMPTZ NOT NULL,
  updated_at           TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS leads_user_created_idx ON leads (user_id, created_at DESC)`,
}

const selectColumns = `
id, user_id, lead_date::text, name, salesperson_name, lead_source, other_source,
phone, email, country, city, client_type, service_pitch,
first_message_sent, reply_received, seen, interested, follow_up_needed, follow_up_date::text,
screenshot_url, screenshot_file_name, notes,
status, deal_value::float8, reason_lost, other_reason_lost,
created_at, updated_at`

// PostgresStore is the Store backed by the leads table.
type PostgresStore struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

// EnsureSchema creates the leads table and its index if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("ensure leads schema: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) List(ctx context.Context, q Query) ([]Lead, error) {
	query := `SELECT ` + selectColumns + ` FROM leads`
	var args []any
	if q.UserID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, q.UserID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Insert(ctx context.Context, l Lead) (Lead, error) {
	const q = `
INSERT INTO leads (
  id, user_id, lead_date, name, salesperson_name, lead_source, other_source,
  phone, email, country, city, client_type, service_pitch,
  first_message_sent, reply_received, seen, interested, follow_up_needed, follow_up_date,
  screenshot_url, screenshot_file_name, notes,
  status, deal_value, reason_lost, other_reason_lost,
  created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28
)
RETURNING ` + selectColumns

	now := s.clock().UTC()
	var reasonLost any
	if l.ReasonLost != nil {
		reasonLost = string(*l.ReasonLost)
	}
	row := s.db.QueryRowContext(ctx, q,
		uuid.NewString(),
		l.UserID,
		l.LeadDate,
		l.Name,
		l.SalespersonName,
		string(l.LeadSource),
		l.OtherSource,
		l.Phone,
		l.Email,
		l.Country,
		l.City,
		string(l.ClientType),
		string(l.ServicePitch),
		l.FirstMessageSent,
		l.ReplyReceived,
		l.Seen,
		l.Interested,
		l.FollowUpNeeded,
		l.FollowUpDate,
		l.ScreenshotURL,
		l.ScreenshotFileName,
		l.Notes,
		string(l.Status),
		l.DealValue,
		reasonLost,
		l.OtherReasonLost,
		now,
		now,
	)
	saved, err := scanLead(row)
	if err != nil {
		return Lead{}, mapPgError(err)
	}
	return saved, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, patch Patch) error {
	if len(patch) == 0 {
		return nil
	}
	fields := make([]string, 0, len(patch))
	for f := range patch {
		if _, ok := fieldTable[f]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	// Column names come from fieldTable, never from the caller.
	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for i, f := range fields {
		sets = append(sets, fmt.Sprintf("%s = $%d", f, i+1))
		args = append(args, patch[Field(f)])
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)+1))
	args = append(args, s.clock().UTC())
	args = append(args, id)

	q := fmt.Sprintf(`UPDATE leads SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return mapPgError(err)
	}
	return requireAffected(res, id)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (Lead, error) {
	var l Lead
	if err := row.Scan(
		&l.ID,
		&l.UserID,
		&l.LeadDate,
		&l.Name,
		&l.SalespersonName,
		&l.LeadSource,
		&l.OtherSource,
		&l.Phone,
		&l.Email,
		&l.Country,
		&l.City,
		&l.ClientType,
		&l.ServicePitch,
		&l.FirstMessageSent,
		&l.ReplyReceived,
		&l.Seen,
		&l.Interested,
		&l.FollowUpNeeded,
		&l.FollowUpDate,
		&l.ScreenshotURL,
		&l.ScreenshotFileName,
		&l.Notes,
		&l.Status,
		&l.DealValue,
		&l.ReasonLost,
		&l.OtherReasonLost,
		&l.CreatedAt,
		&l.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	return l, nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// mapPgError turns a unique violation into ErrConflict.
func mapPgError(err error) error {
	if constraint, ok := utils.UniqueViolation(err); ok {
		return fmt.Errorf("%w: %s", ErrConflict, constraint)
	}
	return err
}
