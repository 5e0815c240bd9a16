package auth

import (
	"time"

	"github.com/google/uuid"
	goerrors "github.com/goliatone/go-errors"
)

var _ Session = &SessionObject{}

type SessionObject struct {
	UserID         string         `json:"user_id,omitempty"`
	UserRole       string         `json:"user_role,omitempty"`
	Audience       []string       `json:"audience,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

// sessionFromAuthClaims creates a SessionObject from validated claims
func sessionFromAuthClaims(claims AuthClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, goerrors.New("claims must not be nil", goerrors.CategoryBadInput)
	}

	session := &SessionObject{
		UserID:   claims.UserID(),
		UserRole: claims.Role(),
		Data: map[string]any{
			"role": claims.Role(),
		},
	}

	if issued := claims.IssuedAt(); !issued.IsZero() {
		t := issued
		session.IssuedAt = &t
	}

	if expires := claims.Expires(); !expires.IsZero() {
		t := expires
		session.ExpirationDate = &t
	}

	if jc, ok := claims.(*JWTClaims); ok {
		session.Audience = jc.RegisteredClaims.Audience
		session.Issuer = jc.RegisteredClaims.Issuer
	}

	return session, nil
}
