package identity

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`insert into accounts(id, email, display_name, password_hash, created_at)
		 values($1,$2,$3,$4,$5)`,
		rec.Account.ID, rec.Account.Email, rec.Account.DisplayName, rec.PasswordHash, rec.Account.CreatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "accounts_email_key") {
		return ErrEmailTaken
	}
	return err
}

func (s *PGStore) Find(ctx context.Context, accountID string) (Record, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`select id, email, display_name, password_hash, invalidated_at, created_at
		   from accounts where id=$1`, accountID))
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (Record, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`select id, email, display_name, password_hash, invalidated_at, created_at
		   from accounts where email=$1`, email))
}

func (s *PGStore) UpdateDisplayName(ctx context.Context, accountID, displayName string) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set display_name=$2 where id=$1`, accountID, displayName)
	if err != nil {
		return err
	}
	return s.requireRow(res)
}

func (s *PGStore) SetInvalidatedAt(ctx context.Context, accountID string, t time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set invalidated_at=$2 where id=$1`, accountID, t)
	if err != nil {
		return err
	}
	return s.requireRow(res)
}

func (s *PGStore) scanOne(row *sql.Row) (Record, error) {
	var (
		rec           Record
		invalidatedAt sql.NullTime
	)
	err := row.Scan(&rec.Account.ID, &rec.Account.Email, &rec.Account.DisplayName,
		&rec.PasswordHash, &invalidatedAt, &rec.Account.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if invalidatedAt.Valid {
		rec.InvalidatedAt = invalidatedAt.Time
	}
	return rec, nil
}

func (s *PGStore) requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
