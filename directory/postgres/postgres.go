// Package postgres provides the production UserDirectory on PostgreSQL via
// pgx. The users table carries unique constraints on username, phone and
// email, so a racing duplicate registration fails at the database even when
// the engine's cached existence check was stale.
//
// Save surfaces such a race as [ErrDuplicateIdentity]. The engine reports
// it to callers as a store failure, not a conflict: its own existence
// checks catch duplicates before the write in all but the race window, and
// that mapping is accepted. Callers that need to tell the two apart can
// test the wrapped error with errors.Is.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carterbrother/joysky"
)

// ErrDuplicateIdentity is returned by Save when a unique constraint on
// username, phone or email rejects the write.
var ErrDuplicateIdentity = errors.New("duplicate identity")

const schema = `
create table if not exists users (
	id               bigint generated always as identity primary key,
	username         text not null unique,
	password_hash    text not null,
	phone            text not null unique,
	email            text not null unique,
	phone_encrypted  text not null,
	email_encrypted  text not null,
	phone_masked     text not null,
	email_masked     text not null,
	created_at       timestamptz not null default now(),
	updated_at       timestamptz not null default now()
);
create index if not exists users_created_at_idx on users (created_at);
`

// Directory implements joysky.UserDirectory on a pgx connection pool.
type Directory struct {
	pool *pgxpool.Pool
}

// NewDirectory connects to databaseURL and pings it to fail fast.
func NewDirectory(ctx context.Context, databaseURL string) (*Directory, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Directory{pool: pool}, nil
}

// Close releases the pool.
func (d *Directory) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

// EnsureSchema creates the users table and its indexes if absent.
func (d *Directory) EnsureSchema(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Exists implements joysky.UserDirectory with an index-only probe.
func (d *Directory) Exists(ctx context.Context, field joysky.Field, value string) (bool, error) {
	col, err := column(field)
	if err != nil {
		return false, err
	}

	var exists bool
	query := fmt.Sprintf(`select exists (select 1 from users where %s = $1)`, col)
	if err := d.pool.QueryRow(ctx, query, value).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists by %s: %w", col, err)
	}
	return exists, nil
}

// FindExact implements joysky.UserDirectory.
func (d *Directory) FindExact(ctx context.Context, field joysky.Field, value string) (*joysky.User, error) {
	col, err := column(field)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		select id, username, password_hash, phone, email,
		       phone_encrypted, email_encrypted, phone_masked, email_masked,
		       created_at, updated_at
		from users where %s = $1`, col)

	var u joysky.User
	err = d.pool.QueryRow(ctx, query, value).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Phone, &u.Email,
		&u.PhoneEncrypted, &u.EmailEncrypted, &u.PhoneMasked, &u.EmailMasked,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by %s: %w", col, err)
	}
	return &u, nil
}

// Save implements joysky.UserDirectory. A zero ID inserts; otherwise the
// row is updated in place with a refreshed updated_at.
func (d *Directory) Save(ctx context.Context, user *joysky.User) (*joysky.User, error) {
	out := *user

	if user.ID == 0 {
		err := d.pool.QueryRow(ctx, `
			insert into users (username, password_hash, phone, email,
			                   phone_encrypted, email_encrypted, phone_masked, email_masked)
			values ($1, $2, $3, $4, $5, $6, $7, $8)
			returning id, created_at, updated_at`,
			user.Username, user.PasswordHash, user.Phone, user.Email,
			user.PhoneEncrypted, user.EmailEncrypted, user.PhoneMasked, user.EmailMasked,
		).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
		if err != nil {
			return nil, mapPgErr(err)
		}
		return &out, nil
	}

	err := d.pool.QueryRow(ctx, `
		update users
		set username = $2, password_hash = $3, phone = $4, email = $5,
		    phone_encrypted = $6, email_encrypted = $7, phone_masked = $8, email_masked = $9,
		    updated_at = now()
		where id = $1
		returning created_at, updated_at`,
		user.ID, user.Username, user.PasswordHash, user.Phone, user.Email,
		user.PhoneEncrypted, user.EmailEncrypted, user.PhoneMasked, user.EmailMasked,
	).Scan(&out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &out, nil
}

func column(field joysky.Field) (string, error) {
	switch field {
	case joysky.FieldUsername:
		return "username", nil
	case joysky.FieldPhone:
		return "phone", nil
	case joysky.FieldEmail:
		return "email", nil
	default:
		return "", fmt.Errorf("unknown directory field %q", field)
	}
}

func mapPgErr(err error) error {
	var pgErr *pgconn.PgError
	// 23505 unique_violation
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentity, pgErr.ConstraintName)
	}
	return err
}
