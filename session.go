package bankapp

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
)

const sessionCookie = "bank_session"

// SessionClaims is the JWT payload carried by the session cookie.
type SessionClaims struct {
	AcctID string `json:"acctId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies signed session cookies. The cookie is the only
// session state; nothing is kept server side, so logout simply expires it.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

func (s *Sessions) Issue(w http.ResponseWriter, acct *Account) error {
	now := time.Now()
	claims := SessionClaims{
		AcctID: acct.AcctID.String(),
		Email:  acct.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		Path:     "/",
		Expires:  now.Add(s.ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest returns the account ID of the logged in caller, or
// ErrAuthRequired when the cookie is missing, expired, or tampered with.
func (s *Sessions) FromRequest(r *http.Request) (snowflake.ID, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return 0, ErrAuthRequired
	}
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrAuthRequired
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrAuthRequired
	}
	id, err := snowflake.ParseString(claims.AcctID)
	if err != nil {
		return 0, ErrAuthRequired
	}
	return id, nil
}
