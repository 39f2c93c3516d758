package auth

import (
	"context"
	"database/sql"
	"time"

	"securelogin/internal/ids"
)

var (
	_ RoleStore   = (*PGRoleStore)(nil)
	_ FactorStore = (*PGFactorStore)(nil)
	_ AuditSink   = (*PGAuditLog)(nil)
	_ AuditReader = (*PGAuditLog)(nil)
)

// PGRoleStore implements RoleStore on PostgreSQL. The upsert keeps
// concurrent mutations of one account serialized at the row; a trigger in
// the schema additionally refuses to move an admin off active status, so
// the TargetIsAdmin invariant holds below the Go layer too.
type PGRoleStore struct {
	db *sql.DB
}

func NewPGRoleStore(db *sql.DB) *PGRoleStore { return &PGRoleStore{db: db} }

func (s *PGRoleStore) Get(ctx context.Context, accountID string) (RoleAssignment, error) {
	row := s.db.QueryRowContext(ctx,
		`select account_id, role, status, created_at, updated_at
		   from role_assignments where account_id=$1`, accountID)
	var a RoleAssignment
	if err := row.Scan(&a.AccountID, &a.Role, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return RoleAssignment{}, ErrNotFound
		}
		return RoleAssignment{}, err
	}
	return a, nil
}

func (s *PGRoleStore) Upsert(ctx context.Context, assignment RoleAssignment) error {
	_, err := s.db.ExecContext(ctx,
		`insert into role_assignments(account_id, role, status)
		 values($1,$2,$3)
		 on conflict (account_id) do update
		    set role=excluded.role, status=excluded.status, updated_at=now()`,
		assignment.AccountID, assignment.Role, assignment.Status,
	)
	return err
}

func (s *PGRoleStore) List(ctx context.Context) ([]RoleAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`select account_id, role, status, created_at, updated_at
		   from role_assignments order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		if err := rows.Scan(&a.AccountID, &a.Role, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// PGFactorStore implements FactorStore on PostgreSQL. One row per account;
// Put replaces the prior secret and template entirely.
type PGFactorStore struct {
	db *sql.DB
}

func NewPGFactorStore(db *sql.DB) *PGFactorStore { return &PGFactorStore{db: db} }

func (s *PGFactorStore) Get(ctx context.Context, accountID string) (FactorRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`select account_id, totp_secret, totp_enrolled, biometric_template, biometric_enrolled, updated_at
		   from auth_factors where account_id=$1`, accountID)
	var (
		r        FactorRecord
		secret   sql.NullString
		template []byte
	)
	if err := row.Scan(&r.AccountID, &secret, &r.TOTPEnrolled, &template, &r.BiometricEnrolled, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return FactorRecord{}, ErrNotFound
		}
		return FactorRecord{}, err
	}
	r.TOTPSecret = secret.String
	r.BiometricTemplate = template
	return r, nil
}

func (s *PGFactorStore) Put(ctx context.Context, record FactorRecord) error {
	_, err := s.db.ExecContext(ctx,
		`insert into auth_factors(account_id, totp_secret, totp_enrolled, biometric_template, biometric_enrolled)
		 values($1,$2,$3,$4,$5)
		 on conflict (account_id) do update
		    set totp_secret=excluded.totp_secret,
		        totp_enrolled=excluded.totp_enrolled,
		        biometric_template=excluded.biometric_template,
		        biometric_enrolled=excluded.biometric_enrolled,
		        updated_at=now()`,
		record.AccountID, record.TOTPSecret, record.TOTPEnrolled, record.BiometricTemplate, record.BiometricEnrolled,
	)
	return err
}

// PGAuditLog implements AuditSink and AuditReader on PostgreSQL. Rows are
// insert-only; ULID ids keep id order equal to creation order.
type PGAuditLog struct {
	db *sql.DB
}

func NewPGAuditLog(db *sql.DB) *PGAuditLog { return &PGAuditLog{db: db} }

func (s *PGAuditLog) Append(ctx context.Context, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into audit_log(id, account_id, action, detail, created_at)
		 values($1,$2,$3,$4,coalesce($5, now()))`,
		entry.ID, entry.AccountID, entry.Action, entry.Detail, nullTime(entry.CreatedAt),
	)
	return err
}

func (s *PGAuditLog) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`select id, account_id, action, detail, created_at
		   from audit_log order by id desc limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
