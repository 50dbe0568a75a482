package identity

import (
	"fmt"
	"strings"
	"time"

	"emis/internal/auth"
)

// DateLayout is the calendar-date form used for parent dates of birth.
const DateLayout = "2006-01-02"

// Admin is a platform administrator. It is the only record carrying a
// recovery code.
type Admin struct {
	ID                 string
	Username           string
	Email              string
	PasswordHash       string
	RecoveryCode       string
	RecoveryCodeExpiry time.Time
	CreatedAt          time.Time
}

// DistrictHead logs in with a district business id and email.
type DistrictHead struct {
	ID           string
	DistrictID   string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Principal is the school account; it logs in with a school business id and email.
type Principal struct {
	ID           string
	SchoolID     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Teacher logs in with the business id of the school employing them and email.
type Teacher struct {
	ID           string
	SchoolID     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Parent has no password; knowledge of the registered date of birth proves identity.
type Parent struct {
	ID          string
	Email       string
	DateOfBirth string
	CreatedAt   time.Time
}

// Profile is the hash-free summary of a credential record returned to its owner.
type Profile struct {
	ID          string    `json:"id"`
	Role        auth.Role `json:"role"`
	Username    string    `json:"username,omitempty"`
	Email       string    `json:"email"`
	DistrictID  string    `json:"districtId,omitempty"`
	SchoolID    string    `json:"schoolId,omitempty"`
	DateOfBirth string    `json:"dateOfBirth,omitempty"`
}

// NormalizeDate reduces a YYYY-MM-DD or RFC 3339 value to YYYY-MM-DD.
func NormalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if d, err := time.Parse(DateLayout, raw); err == nil {
		return d.Format(DateLayout), nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC().Format(DateLayout), nil
	}
	return "", fmt.Errorf("identity: invalid date %q", raw)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
