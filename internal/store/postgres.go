package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"emis/internal/identity"
)

// Postgres persists credential records in Postgres.
type Postgres struct {
	pool *DB
	db   *sql.DB
}

var _ identity.Backend = (*Postgres)(nil)

// NewPostgres creates a store over an open pool.
func NewPostgres(db *DB) *Postgres {
	return &Postgres{pool: db, db: db.Client}
}

// Healthy pings the pool.
func (p *Postgres) Healthy(ctx context.Context) bool { return p.pool.Healthy(ctx) }

// Close closes the pool.
func (p *Postgres) Close() error { return p.pool.Close() }

// mapErr translates driver errors into the identity store contract.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return identity.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %s", identity.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

const adminColumns = `id, username, email, password_hash, reset_otp, reset_otp_expire_at, created_at`

func scanAdmin(row scanner) (identity.Admin, error) {
	var (
		a      identity.Admin
		expiry sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.RecoveryCode, &expiry, &a.CreatedAt); err != nil {
		return identity.Admin{}, mapErr(err)
	}
	if expiry.Valid {
		a.RecoveryCodeExpiry = expiry.Time
	}
	return a, nil
}

func (p *Postgres) CreateAdmin(ctx context.Context, a identity.Admin) (identity.Admin, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO admins (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+adminColumns,
		a.ID, a.Username, a.Email, a.PasswordHash, createdAt(a.CreatedAt))
	return scanAdmin(row)
}

func (p *Postgres) AdminByUsername(ctx context.Context, username string) (identity.Admin, error) {
	return scanAdmin(p.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE username = $1`, username))
}

// AdminByEmail returns the earliest admin registered with email.
func (p *Postgres) AdminByEmail(ctx context.Context, email string) (identity.Admin, error) {
	return scanAdmin(p.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE email = $1 ORDER BY created_at, id LIMIT 1`, email))
}

func (p *Postgres) AdminByID(ctx context.Context, id string) (identity.Admin, error) {
	return scanAdmin(p.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = $1`, id))
}

func (p *Postgres) SetRecoveryCode(ctx context.Context, id, code string, expiresAt time.Time) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE admins SET reset_otp = $2, reset_otp_expire_at = $3 WHERE id = $1`, id, code, expiresAt.UTC())
	if err != nil {
		return err
	}
	return requireRow(res, identity.ErrNotFound)
}

// RedeemRecoveryCode writes only while the stored code is still code, so
// of two concurrent redemptions at most one updates the row.
func (p *Postgres) RedeemRecoveryCode(ctx context.Context, id, code, passwordHash string) error {
	if code == "" {
		return identity.ErrCodeMismatch
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE admins
		SET password_hash = $3, reset_otp = '', reset_otp_expire_at = NULL
		WHERE id = $1 AND reset_otp = $2
	`, id, code, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res, identity.ErrCodeMismatch)
}

func (p *Postgres) CreateDistrictHead(ctx context.Context, d identity.DistrictHead) (identity.DistrictHead, error) {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO district_heads (id, district_id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, d.ID, d.DistrictID, d.Email, d.PasswordHash, createdAt(d.CreatedAt))
	if err != nil {
		return identity.DistrictHead{}, mapErr(err)
	}
	return d, nil
}

func (p *Postgres) DistrictHeadByLogin(ctx context.Context, districtID, email string) (identity.DistrictHead, error) {
	return p.districtHead(ctx, `district_id = $1 AND email = $2`, districtID, email)
}

func (p *Postgres) DistrictHeadByID(ctx context.Context, id string) (identity.DistrictHead, error) {
	return p.districtHead(ctx, `id = $1`, id)
}

func (p *Postgres) districtHead(ctx context.Context, where string, args ...any) (identity.DistrictHead, error) {
	var d identity.DistrictHead
	err := p.db.QueryRowContext(ctx,
		`SELECT id, district_id, email, password_hash, created_at FROM district_heads WHERE `+where, args...).
		Scan(&d.ID, &d.DistrictID, &d.Email, &d.PasswordHash, &d.CreatedAt)
	return d, mapErr(err)
}

func (p *Postgres) CreatePrincipal(ctx context.Context, s identity.Principal) (identity.Principal, error) {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO principals (id, school_id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.ID, s.SchoolID, s.Email, s.PasswordHash, createdAt(s.CreatedAt))
	if err != nil {
		return identity.Principal{}, mapErr(err)
	}
	return s, nil
}

func (p *Postgres) PrincipalByLogin(ctx context.Context, schoolID, email string) (identity.Principal, error) {
	return p.principal(ctx, `school_id = $1 AND email = $2`, schoolID, email)
}

func (p *Postgres) PrincipalByID(ctx context.Context, id string) (identity.Principal, error) {
	return p.principal(ctx, `id = $1`, id)
}

func (p *Postgres) principal(ctx context.Context, where string, args ...any) (identity.Principal, error) {
	var s identity.Principal
	err := p.db.QueryRowContext(ctx,
		`SELECT id, school_id, email, password_hash, created_at FROM principals WHERE `+where, args...).
		Scan(&s.ID, &s.SchoolID, &s.Email, &s.PasswordHash, &s.CreatedAt)
	return s, mapErr(err)
}

func (p *Postgres) CreateTeacher(ctx context.Context, t identity.Teacher) (identity.Teacher, error) {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO teachers (id, school_id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.SchoolID, t.Email, t.PasswordHash, createdAt(t.CreatedAt))
	if err != nil {
		return identity.Teacher{}, mapErr(err)
	}
	return t, nil
}

func (p *Postgres) TeacherByLogin(ctx context.Context, schoolID, email string) (identity.Teacher, error) {
	return p.teacher(ctx, `school_id = $1 AND email = $2`, schoolID, email)
}

func (p *Postgres) TeacherByID(ctx context.Context, id string) (identity.Teacher, error) {
	return p.teacher(ctx, `id = $1`, id)
}

func (p *Postgres) teacher(ctx context.Context, where string, args ...any) (identity.Teacher, error) {
	var t identity.Teacher
	err := p.db.QueryRowContext(ctx,
		`SELECT id, school_id, email, password_hash, created_at FROM teachers WHERE `+where, args...).
		Scan(&t.ID, &t.SchoolID, &t.Email, &t.PasswordHash, &t.CreatedAt)
	return t, mapErr(err)
}

func (p *Postgres) CreateParent(ctx context.Context, par identity.Parent) (identity.Parent, error) {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO parents (id, email, date_of_birth, created_at)
		VALUES ($1, $2, $3::date, $4)
	`, par.ID, par.Email, par.DateOfBirth, createdAt(par.CreatedAt))
	if err != nil {
		return identity.Parent{}, mapErr(err)
	}
	return par, nil
}

func (p *Postgres) ParentByLogin(ctx context.Context, email, dateOfBirth string) (identity.Parent, error) {
	return p.parent(ctx, `email = $1 AND date_of_birth = $2::date`, email, dateOfBirth)
}

func (p *Postgres) ParentByID(ctx context.Context, id string) (identity.Parent, error) {
	return p.parent(ctx, `id = $1`, id)
}

func (p *Postgres) parent(ctx context.Context, where string, args ...any) (identity.Parent, error) {
	var (
		par identity.Parent
		dob string
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT id, email, to_char(date_of_birth, 'YYYY-MM-DD'), created_at FROM parents WHERE `+where, args...).
		Scan(&par.ID, &par.Email, &dob, &par.CreatedAt)
	if err != nil {
		return identity.Parent{}, mapErr(err)
	}
	par.DateOfBirth = dob
	return par, nil
}

func requireRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
