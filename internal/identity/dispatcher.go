package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"emis/internal/auth"
	"emis/internal/metrics"
)

// LoginResult bundles the token with the role and id it encodes.
type LoginResult struct {
	Token     string
	Role      auth.Role
	SubjectID string
}

// Dispatcher authenticates any of the five principal types and mints tokens.
type Dispatcher struct {
	stores Stores
	hasher *auth.Hasher
	codec  *auth.Codec
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher over the given stores.
func NewDispatcher(stores Stores, hasher *auth.Hasher, codec *auth.Codec, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{stores: stores, hasher: hasher, codec: codec, logger: logger}
}

// Login verifies creds against the matching store and issues a token.
// Any mismatch, including a missing record, yields an error wrapping
// ErrInvalidCredentials.
func (d *Dispatcher) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	if creds == nil {
		return LoginResult{}, ErrInvalidRole
	}
	role := creds.Role()

	subjectID, err := d.authenticate(ctx, creds)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			metrics.LoginAttempts.WithLabelValues(string(role), "rejected").Inc()
			d.logger.InfoContext(ctx, "login rejected", "role", role)
		} else {
			metrics.LoginAttempts.WithLabelValues(string(role), "error").Inc()
			d.logger.ErrorContext(ctx, "login failed", "role", role, "error", err)
		}
		return LoginResult{}, err
	}

	token, _, err := d.codec.Issue(role, subjectID)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues(string(role), "error").Inc()
		return LoginResult{}, err
	}
	metrics.LoginAttempts.WithLabelValues(string(role), "success").Inc()
	return LoginResult{Token: token, Role: role, SubjectID: subjectID}, nil
}

func (d *Dispatcher) authenticate(ctx context.Context, creds Credentials) (string, error) {
	switch c := creds.(type) {
	case AdminCredentials:
		rec, err := d.stores.Admins.AdminByUsername(ctx, c.Username)
		return d.checkPassword(c.Role(), rec.ID, rec.PasswordHash, c.Password, err)
	case DistrictHeadCredentials:
		rec, err := d.stores.DistrictHeads.DistrictHeadByLogin(ctx, c.DistrictID, normalizeEmail(c.Email))
		return d.checkPassword(c.Role(), rec.ID, rec.PasswordHash, c.Password, err)
	case PrincipalCredentials:
		rec, err := d.stores.Principals.PrincipalByLogin(ctx, c.SchoolID, normalizeEmail(c.Email))
		return d.checkPassword(c.Role(), rec.ID, rec.PasswordHash, c.Password, err)
	case TeacherCredentials:
		rec, err := d.stores.Teachers.TeacherByLogin(ctx, c.SchoolID, normalizeEmail(c.Email))
		return d.checkPassword(c.Role(), rec.ID, rec.PasswordHash, c.Password, err)
	case ParentCredentials:
		dob, err := NormalizeDate(c.DateOfBirth)
		if err != nil {
			return "", invalidCredentials(c.Role())
		}
		rec, err := d.stores.Parents.ParentByLogin(ctx, normalizeEmail(c.Email), dob)
		if errors.Is(err, ErrNotFound) {
			return "", invalidCredentials(c.Role())
		}
		if err != nil {
			return "", fmt.Errorf("identity: parent lookup: %w", err)
		}
		return rec.ID, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrInvalidRole, creds)
	}
}

// checkPassword folds a lookup result and a hash comparison into one
// outcome. A missing record still costs one bcrypt comparison.
func (d *Dispatcher) checkPassword(role auth.Role, id, hash, plain string, lookupErr error) (string, error) {
	if errors.Is(lookupErr, ErrNotFound) {
		d.hasher.Burn(plain)
		return "", invalidCredentials(role)
	}
	if lookupErr != nil {
		return "", fmt.Errorf("identity: %s lookup: %w", role, lookupErr)
	}
	if err := d.hasher.Verify(hash, plain); err != nil {
		return "", invalidCredentials(role)
	}
	return id, nil
}

// Profile returns the hash-free record behind a verified identity.
func (d *Dispatcher) Profile(ctx context.Context, id auth.Identity) (Profile, error) {
	switch id.Role {
	case auth.RoleAdmin:
		rec, err := d.stores.Admins.AdminByID(ctx, id.SubjectID)
		if err != nil {
			return Profile{}, err
		}
		return Profile{ID: rec.ID, Role: id.Role, Username: rec.Username, Email: rec.Email}, nil
	case auth.RoleDistrictHead:
		rec, err := d.stores.DistrictHeads.DistrictHeadByID(ctx, id.SubjectID)
		if err != nil {
			return Profile{}, err
		}
		return Profile{ID: rec.ID, Role: id.Role, Email: rec.Email, DistrictID: rec.DistrictID}, nil
	case auth.RolePrincipal:
		rec, err := d.stores.Principals.PrincipalByID(ctx, id.SubjectID)
		if err != nil {
			return Profile{}, err
		}
		return Profile{ID: rec.ID, Role: id.Role, Email: rec.Email, SchoolID: rec.SchoolID}, nil
	case auth.RoleTeacher:
		rec, err := d.stores.Teachers.TeacherByID(ctx, id.SubjectID)
		if err != nil {
			return Profile{}, err
		}
		return Profile{ID: rec.ID, Role: id.Role, Email: rec.Email, SchoolID: rec.SchoolID}, nil
	case auth.RoleParent:
		rec, err := d.stores.Parents.ParentByID(ctx, id.SubjectID)
		if err != nil {
			return Profile{}, err
		}
		return Profile{ID: rec.ID, Role: id.Role, Email: rec.Email, DateOfBirth: rec.DateOfBirth}, nil
	default:
		return Profile{}, ErrInvalidRole
	}
}
