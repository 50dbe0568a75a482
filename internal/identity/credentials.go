package identity

import (
	"errors"
	"fmt"

	"emis/internal/auth"
)

var (
	// ErrInvalidRole is returned for an unknown login type.
	ErrInvalidRole = errors.New("identity: invalid login type")
	// ErrInvalidCredentials is the single failure for every credential
	// mismatch, whether or not the account exists.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
)

// InvalidCredentialsError carries the role whose login failed. Its message
// is fixed per role so callers cannot tell which check rejected them.
type InvalidCredentialsError struct {
	Role auth.Role
}

func (e *InvalidCredentialsError) Error() string {
	switch e.Role {
	case auth.RoleAdmin:
		return "Invalid username or password"
	case auth.RoleParent:
		return "Invalid email or date of birth"
	case auth.RoleDistrictHead:
		return "Invalid district ID, email or password"
	default:
		return "Invalid school ID, email or password"
	}
}

func (e *InvalidCredentialsError) Unwrap() error { return ErrInvalidCredentials }

func invalidCredentials(role auth.Role) error {
	return &InvalidCredentialsError{Role: role}
}

// Credentials is the tagged union of the five login shapes.
type Credentials interface {
	Role() auth.Role
	credentials()
}

// AdminCredentials identify an admin by username and password.
type AdminCredentials struct {
	Username string
	Password string
}

// DistrictHeadCredentials identify a district head by district id, email and password.
type DistrictHeadCredentials struct {
	DistrictID string
	Email      string
	Password   string
}

// PrincipalCredentials identify a school account by school id, email and password.
type PrincipalCredentials struct {
	SchoolID string
	Email    string
	Password string
}

// TeacherCredentials identify a teacher by school id, email and password.
type TeacherCredentials struct {
	SchoolID string
	Email    string
	Password string
}

// ParentCredentials identify a parent by email and date of birth.
type ParentCredentials struct {
	Email       string
	DateOfBirth string
}

func (AdminCredentials) Role() auth.Role        { return auth.RoleAdmin }
func (DistrictHeadCredentials) Role() auth.Role { return auth.RoleDistrictHead }
func (PrincipalCredentials) Role() auth.Role    { return auth.RolePrincipal }
func (TeacherCredentials) Role() auth.Role      { return auth.RoleTeacher }
func (ParentCredentials) Role() auth.Role       { return auth.RoleParent }

func (AdminCredentials) credentials()        {}
func (DistrictHeadCredentials) credentials() {}
func (PrincipalCredentials) credentials()    {}
func (TeacherCredentials) credentials()      {}
func (ParentCredentials) credentials()       {}

// LoginFields is the flat field set a login request may carry.
type LoginFields struct {
	Username    string
	Password    string
	Email       string
	SchoolID    string
	DistrictID  string
	DateOfBirth string
}

// NewCredentials selects the credential shape for loginType.
func NewCredentials(loginType string, f LoginFields) (Credentials, error) {
	role, ok := auth.ParseRole(loginType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, loginType)
	}
	switch role {
	case auth.RoleAdmin:
		return AdminCredentials{Username: f.Username, Password: f.Password}, nil
	case auth.RoleDistrictHead:
		return DistrictHeadCredentials{DistrictID: f.DistrictID, Email: f.Email, Password: f.Password}, nil
	case auth.RolePrincipal:
		return PrincipalCredentials{SchoolID: f.SchoolID, Email: f.Email, Password: f.Password}, nil
	case auth.RoleTeacher:
		return TeacherCredentials{SchoolID: f.SchoolID, Email: f.Email, Password: f.Password}, nil
	default:
		return ParentCredentials{Email: f.Email, DateOfBirth: f.DateOfBirth}, nil
	}
}
