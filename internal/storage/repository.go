// Package storage is the single place the group's books are written.
// Every mutating operation runs in one SQLite transaction that also
// writes its audit-log row, and every financial write carries its ledger
// mirror in the same transaction (see ledger.go). Callers cannot create
// a source record without its ledger counterpart.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hazina/internal/core"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at dbPath and
// applies pending migrations. Foreign keys are enforced per connection.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on error. All
// mutating operations on the store go through here.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func appendAudit(ctx context.Context, tx *sql.Tx, action, table string, recordID int64, actor, details string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (action_type, table_name, record_id, actor, created_at, details)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		action, table, recordID, actor, time.Now().UTC().Format(time.RFC3339), details)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func uniqueViolation(err error, columns string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+columns)
}

// --- Member directory ---

func (s *Store) CreateMember(ctx context.Context, m core.Member, actor string) (int64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO members (name, phone, email, shares_owned, role, join_date)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.Name, m.Phone, m.Email, m.SharesOwned, string(m.Role), m.JoinDate.String())
		if uniqueViolation(err, "members.phone") || uniqueViolation(err, "members.email") {
			return core.ErrDuplicateIdentity
		}
		if err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("member id: %w", err)
		}
		return appendAudit(ctx, tx, "create", "members", id, actor, "registered "+m.Name)
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Member registered",
		"member_id", id,
		"name", m.Name,
		"shares", m.SharesOwned,
		"role", string(m.Role))
	return id, nil
}

func scanMember(row interface{ Scan(...any) error }) (*core.Member, error) {
	var (
		m        core.Member
		role     string
		joinDate string
		archived sql.NullString
	)
	err := row.Scan(&m.ID, &m.Name, &m.Phone, &m.Email, &m.SharesOwned,
		&m.TotalContributed.Cents, &role, &joinDate, &archived)
	if err != nil {
		return nil, err
	}
	m.Role = core.Role(role)
	if m.JoinDate, err = core.ParseDate(joinDate); err != nil {
		return nil, fmt.Errorf("member %d join date: %w", m.ID, err)
	}
	if archived.Valid {
		t, err := time.Parse(time.RFC3339, archived.String)
		if err != nil {
			return nil, fmt.Errorf("member %d archived_at: %w", m.ID, err)
		}
		m.ArchivedAt = &t
	}
	return &m, nil
}

const memberColumns = `id, name, phone, email, shares_owned, total_contributed_cents, role, join_date, archived_at`

func (s *Store) GetMember(ctx context.Context, id int64) (*core.Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListMembers returns the directory, excluding archived members unless
// asked for.
func (s *Store) ListMembers(ctx context.Context, includeArchived bool) ([]core.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members`
	if !includeArchived {
		query += ` WHERE archived_at IS NULL`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *Store) UpdateMemberShares(ctx context.Context, id, shares int64, actor string) error {
	if shares < 1 {
		return core.ErrInvalidShares
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := memberTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if m.ArchivedAt != nil {
			return core.ErrMemberArchived
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE members SET shares_owned = ? WHERE id = ?`, shares, id); err != nil {
			return fmt.Errorf("update shares: %w", err)
		}
		return appendAudit(ctx, tx, "update", "members", id, actor,
			fmt.Sprintf("shares %d -> %d", m.SharesOwned, shares))
	})
}

// ArchiveMember soft-deletes: the member drops out of directory listings
// and batch runs but every financial record stays in place.
func (s *Store) ArchiveMember(ctx context.Context, id int64, actor string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := memberTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if m.ArchivedAt != nil {
			return core.ErrMemberArchived
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE members SET archived_at = ? WHERE id = ?`,
			time.Now().UTC().Format(time.RFC3339), id); err != nil {
			return fmt.Errorf("archive member: %w", err)
		}
		return appendAudit(ctx, tx, "archive", "members", id, actor, "archived "+m.Name)
	})
}

// DeleteMember removes a member outright. It is refused while any
// financial record references the member: the books of an audited group
// are not erased by a directory operation. Archive instead.
func (s *Store) DeleteMember(ctx context.Context, id int64, actor string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := memberTx(ctx, tx, id)
		if err != nil {
			return err
		}

		var refs int64
		err = tx.QueryRowContext(ctx,
			`SELECT (SELECT COUNT(*) FROM contributions WHERE member_id = ?1)
			      + (SELECT COUNT(*) FROM loans WHERE member_id = ?1)
			      + (SELECT COUNT(*) FROM penalties WHERE member_id = ?1)
			      + (SELECT COUNT(*) FROM transactions WHERE member_id = ?1)`, id).Scan(&refs)
		if err != nil {
			return fmt.Errorf("count member references: %w", err)
		}
		if refs > 0 {
			return core.ErrMemberHasRecords
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete member: %w", err)
		}
		return appendAudit(ctx, tx, "delete", "members", id, actor, "deleted "+m.Name)
	})
}

func memberTx(ctx context.Context, tx *sql.Tx, id int64) (*core.Member, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func activeMembersTx(ctx context.Context, tx *sql.Tx) ([]core.Member, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE archived_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// --- Configuration parameters ---

func (s *Store) SetParam(ctx context.Context, key, value, description, actor string) error {
	if strings.TrimSpace(key) == "" || strings.TrimSpace(value) == "" {
		return fmt.Errorf("config key and value are required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO config_params (key, value, description) VALUES (?, ?, ?)
			 ON CONFLICT (key) DO UPDATE SET value = excluded.value, description = excluded.description`,
			key, value, description)
		if err != nil {
			return fmt.Errorf("set config param: %w", err)
		}
		return appendAudit(ctx, tx, "set", "config_params", 0, actor, key+"="+value)
	})
}

func (s *Store) GetParam(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM config_params WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("config param %q not set", key)
	}
	if err != nil {
		return "", fmt.Errorf("get config param: %w", err)
	}
	return value, nil
}

func (s *Store) ListParams(ctx context.Context) ([]core.ConfigParam, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, description FROM config_params ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list config params: %w", err)
	}
	defer rows.Close()

	var params []core.ConfigParam
	for rows.Next() {
		var p core.ConfigParam
		if err := rows.Scan(&p.Key, &p.Value, &p.Description); err != nil {
			return nil, fmt.Errorf("scan config param: %w", err)
		}
		params = append(params, p)
	}
	return params, rows.Err()
}

// LoadSettings builds the immutable snapshot batch jobs run against.
func (s *Store) LoadSettings(ctx context.Context) (core.Settings, error) {
	var set core.Settings

	shareValue, err := s.GetParam(ctx, core.ParamShareValue)
	if err != nil {
		return set, err
	}
	if set.ShareValue, err = core.ParseAmount(shareValue); err != nil {
		return set, fmt.Errorf("parse %s: %w", core.ParamShareValue, err)
	}

	penaltyRate, err := s.GetParam(ctx, core.ParamPenaltyRate)
	if err != nil {
		return set, err
	}
	if set.PenaltyRate, err = core.ParseRate(penaltyRate); err != nil {
		return set, fmt.Errorf("parse %s: %w", core.ParamPenaltyRate, err)
	}

	interestRate, err := s.GetParam(ctx, core.ParamInterestRate)
	if err != nil {
		return set, err
	}
	if set.InterestRate, err = core.ParseRate(interestRate); err != nil {
		return set, fmt.Errorf("parse %s: %w", core.ParamInterestRate, err)
	}

	return set, nil
}

// --- Meetings ---

func (s *Store) CreateMeeting(ctx context.Context, m core.Meeting, actor string) (int64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO meetings (date, agenda, minutes) VALUES (?, ?, ?)`,
			m.Date.String(), m.Agenda, m.Minutes)
		if err != nil {
			return fmt.Errorf("insert meeting: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("meeting id: %w", err)
		}
		for _, memberID := range m.AttendeeIDs {
			if _, err := memberTx(ctx, tx, memberID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO meeting_attendees (meeting_id, member_id) VALUES (?, ?)`,
				id, memberID); err != nil {
				return fmt.Errorf("insert attendee: %w", err)
			}
		}
		return appendAudit(ctx, tx, "create", "meetings", id, actor,
			fmt.Sprintf("%d attendees", len(m.AttendeeIDs)))
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) ListMeetings(ctx context.Context) ([]core.Meeting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date, agenda, minutes FROM meetings ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []core.Meeting
	for rows.Next() {
		var (
			m    core.Meeting
			date string
		)
		if err := rows.Scan(&m.ID, &date, &m.Agenda, &m.Minutes); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		if m.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("meeting %d date: %w", m.ID, err)
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range meetings {
		attendees, err := s.db.QueryContext(ctx,
			`SELECT member_id FROM meeting_attendees WHERE meeting_id = ? ORDER BY member_id`,
			meetings[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list attendees: %w", err)
		}
		for attendees.Next() {
			var memberID int64
			if err := attendees.Scan(&memberID); err != nil {
				attendees.Close()
				return nil, fmt.Errorf("scan attendee: %w", err)
			}
			meetings[i].AttendeeIDs = append(meetings[i].AttendeeIDs, memberID)
		}
		if err := attendees.Err(); err != nil {
			attendees.Close()
			return nil, err
		}
		attendees.Close()
	}
	return meetings, nil
}

// --- Audit log ---

func (s *Store) ListAuditLog(ctx context.Context, limit int) ([]core.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action_type, table_name, record_id, actor, created_at, details
		 FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	defer rows.Close()

	var entries []core.AuditEntry
	for rows.Next() {
		var (
			e         core.AuditEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.ActionType, &e.TableName, &e.RecordID,
			&e.Actor, &createdAt, &e.Details); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("audit entry %d timestamp: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
