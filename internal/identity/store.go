package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound signals that no record matches the lookup.
	ErrNotFound = errors.New("identity: record not found")
	// ErrDuplicate signals that a record with the same login key exists.
	ErrDuplicate = errors.New("identity: record already exists")
	// ErrCodeMismatch signals that the stored recovery code changed or was
	// cleared before a redemption could be written.
	ErrCodeMismatch = errors.New("identity: recovery code mismatch")
)

// AdminStore persists Admin records and their recovery codes.
type AdminStore interface {
	CreateAdmin(ctx context.Context, a Admin) (Admin, error)
	AdminByUsername(ctx context.Context, username string) (Admin, error)
	AdminByEmail(ctx context.Context, email string) (Admin, error)
	AdminByID(ctx context.Context, id string) (Admin, error)
	// SetRecoveryCode replaces code and expiry in one write.
	SetRecoveryCode(ctx context.Context, id, code string, expiresAt time.Time) error
	// RedeemRecoveryCode stores passwordHash and clears the code only if the
	// stored code still equals code; otherwise it returns ErrCodeMismatch.
	RedeemRecoveryCode(ctx context.Context, id, code, passwordHash string) error
}

// DistrictHeadStore persists DistrictHead records.
type DistrictHeadStore interface {
	CreateDistrictHead(ctx context.Context, d DistrictHead) (DistrictHead, error)
	DistrictHeadByLogin(ctx context.Context, districtID, email string) (DistrictHead, error)
	DistrictHeadByID(ctx context.Context, id string) (DistrictHead, error)
}

// PrincipalStore persists school Principal records.
type PrincipalStore interface {
	CreatePrincipal(ctx context.Context, p Principal) (Principal, error)
	PrincipalByLogin(ctx context.Context, schoolID, email string) (Principal, error)
	PrincipalByID(ctx context.Context, id string) (Principal, error)
}

// TeacherStore persists Teacher records.
type TeacherStore interface {
	CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
	TeacherByLogin(ctx context.Context, schoolID, email string) (Teacher, error)
	TeacherByID(ctx context.Context, id string) (Teacher, error)
}

// ParentStore persists Parent records.
type ParentStore interface {
	CreateParent(ctx context.Context, p Parent) (Parent, error)
	// ParentByLogin matches email and date of birth exactly.
	ParentByLogin(ctx context.Context, email, dateOfBirth string) (Parent, error)
	ParentByID(ctx context.Context, id string) (Parent, error)
}

// Stores groups the five credential stores.
type Stores struct {
	Admins        AdminStore
	DistrictHeads DistrictHeadStore
	Principals    PrincipalStore
	Teachers      TeacherStore
	Parents       ParentStore
}

// Backend is a single store implementation serving all five roles.
type Backend interface {
	AdminStore
	DistrictHeadStore
	PrincipalStore
	TeacherStore
	ParentStore
}

// StoresFrom wires every role to the same backend.
func StoresFrom(b Backend) Stores {
	return Stores{Admins: b, DistrictHeads: b, Principals: b, Teachers: b, Parents: b}
}
