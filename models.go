package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole string

const (
	// RoleUser is a regular customer (browse, book tours)
	RoleUser UserRole = "user"
	// RoleGuide leads booked tours
	RoleGuide UserRole = "guide"
	// RoleLeadGuide manages tours and guides
	RoleLeadGuide UserRole = "lead-guide"
	// RoleAdmin has full access
	RoleAdmin UserRole = "admin"
)

// User is the user model
type User struct {
	bun.BaseModel        `bun:"table:users,alias:usr"`
	ID                   uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role                 UserRole   `bun:"user_role,notnull" json:"role,omitempty"`
	FirstName            string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName             string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Email                string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash         string     `bun:"password_hash" json:"-"`
	PasswordChangedAt    *time.Time `bun:"password_changed_at,nullzero" json:"-"`
	PasswordResetToken   string     `bun:"password_reset_token,nullzero" json:"-"`
	PasswordResetExpires *time.Time `bun:"password_reset_expires,nullzero" json:"-"`
	LoginAttempts        int        `bun:"login_attempts" json:"-"`
	LoginAttemptAt       *time.Time `bun:"login_attempt_at" json:"-"`
	LoggedInAt           *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt            *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt            *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt            *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// FullName returns the display name used in notifications.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// SetPassword hashes the given cleartext and stamps PasswordChangedAt.
// The stamp is backdated one second so a token issued within the same
// second as the rotation still fails the freshness check.
func (u *User) SetPassword(password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	changedAt := time.Now().Add(-time.Second)
	u.PasswordHash = hash
	u.PasswordChangedAt = &changedAt
	return nil
}

// ChangedPasswordAfter reports whether the password was rotated after
// the given token issuance time.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.After(issuedAt)
}

// ClearResetToken removes any pending password reset state.
func (u *User) ClearResetToken() {
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
}

// HasActiveResetToken reports whether an unexpired reset token hash is stored.
func (u *User) HasActiveResetToken(now time.Time) bool {
	if u.PasswordResetToken == "" || u.PasswordResetExpires == nil {
		return false
	}
	return u.PasswordResetExpires.After(now)
}
