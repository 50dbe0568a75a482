package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"emis/internal/auth"
)

var (
	// ErrPasswordMismatch is returned by signup when the retyped password differs.
	ErrPasswordMismatch = errors.New("identity: passwords do not match")
	// ErrMissingField is returned when a login-key or secret field is empty.
	ErrMissingField = errors.New("identity: missing required field")
)

// Signup is the admin self-registration request.
type Signup struct {
	Username        string
	Password        string
	RetypedPassword string
	Email           string
}

// NewAccount carries the fields needed to provision any non-admin role.
type NewAccount struct {
	Role        auth.Role
	Email       string
	Password    string
	DistrictID  string
	SchoolID    string
	DateOfBirth string
}

// Provisioner creates credential records.
type Provisioner struct {
	stores Stores
	hasher *auth.Hasher
	now    func() time.Time
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(stores Stores, hasher *auth.Hasher) *Provisioner {
	return &Provisioner{stores: stores, hasher: hasher, now: time.Now}
}

// SignupAdmin registers a new admin. Usernames are unique.
func (p *Provisioner) SignupAdmin(ctx context.Context, s Signup) (Profile, error) {
	username := strings.TrimSpace(s.Username)
	if username == "" || s.Password == "" {
		return Profile{}, fmt.Errorf("%w: username and password", ErrMissingField)
	}
	if s.Password != s.RetypedPassword {
		return Profile{}, ErrPasswordMismatch
	}
	hash, err := p.hasher.Hash(s.Password)
	if err != nil {
		return Profile{}, err
	}
	a, err := p.stores.Admins.CreateAdmin(ctx, Admin{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        normalizeEmail(s.Email),
		PasswordHash: hash,
		CreatedAt:    p.now().UTC(),
	})
	if err != nil {
		return Profile{}, err
	}
	return Profile{ID: a.ID, Role: auth.RoleAdmin, Username: a.Username, Email: a.Email}, nil
}

// Provision creates a district head, school, teacher or parent record.
func (p *Provisioner) Provision(ctx context.Context, acc NewAccount) (Profile, error) {
	email := normalizeEmail(acc.Email)
	if email == "" {
		return Profile{}, fmt.Errorf("%w: email", ErrMissingField)
	}
	id := uuid.NewString()
	created := p.now().UTC()

	if acc.Role == auth.RoleParent {
		dob, err := NormalizeDate(acc.DateOfBirth)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: dateOfBirth", ErrMissingField)
		}
		rec, err := p.stores.Parents.CreateParent(ctx, Parent{ID: id, Email: email, DateOfBirth: dob, CreatedAt: created})
		if err != nil {
			return Profile{}, err
		}
		return Profile{ID: rec.ID, Role: acc.Role, Email: rec.Email, DateOfBirth: rec.DateOfBirth}, nil
	}

	if acc.Password == "" {
		return Profile{}, fmt.Errorf("%w: password", ErrMissingField)
	}
	switch acc.Role {
	case auth.RoleDistrictHead:
		if acc.DistrictID == "" {
			return Profile{}, fmt.Errorf("%w: districtId", ErrMissingField)
		}
	case auth.RolePrincipal, auth.RoleTeacher:
		if acc.SchoolID == "" {
			return Profile{}, fmt.Errorf("%w: schoolId", ErrMissingField)
		}
	default:
		// admins register through SignupAdmin
		return Profile{}, fmt.Errorf("%w: %q", ErrInvalidRole, acc.Role)
	}

	hash, err := p.hasher.Hash(acc.Password)
	if err != nil {
		return Profile{}, err
	}
	switch acc.Role {
	case auth.RoleDistrictHead:
		rec, err := p.stores.DistrictHeads.CreateDistrictHead(ctx, DistrictHead{
			ID: id, DistrictID: acc.DistrictID, Email: email, PasswordHash: hash, CreatedAt: created,
		})
		if err != nil {
			return Profile{}, err
		}
		return Profile{ID: rec.ID, Role: acc.Role, Email: rec.Email, DistrictID: rec.DistrictID}, nil
	case auth.RolePrincipal:
		rec, err := p.stores.Principals.CreatePrincipal(ctx, Principal{
			ID: id, SchoolID: acc.SchoolID, Email: email, PasswordHash: hash, CreatedAt: created,
		})
		if err != nil {
			return Profile{}, err
		}
		return Profile{ID: rec.ID, Role: acc.Role, Email: rec.Email, SchoolID: rec.SchoolID}, nil
	default:
		rec, err := p.stores.Teachers.CreateTeacher(ctx, Teacher{
			ID: id, SchoolID: acc.SchoolID, Email: email, PasswordHash: hash, CreatedAt: created,
		})
		if err != nil {
			return Profile{}, err
		}
		return Profile{ID: rec.ID, Role: acc.Role, Email: rec.Email, SchoolID: rec.SchoolID}, nil
	}
}
