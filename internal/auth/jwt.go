package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/XxvipoxX/ChaosAWS/pkg/middleware"
)

const issuer = "chaos-membership"

// Claims represents the JWT claims of a session token.
type Claims struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Remember  bool   `json:"remember,omitempty"`
	jwt.RegisteredClaims
}

// Session is a signed token together with its expiry.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// JWTManager issues and validates session tokens.
type JWTManager struct {
	secret      []byte
	sessionTTL  time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

// NewJWTManager creates a JWT manager. rememberTTL applies to sessions
// opened with the remember flag, sessionTTL to the others.
func NewJWTManager(secret string, sessionTTL, rememberTTL time.Duration) *JWTManager {
	return &JWTManager{
		secret:      []byte(secret),
		sessionTTL:  sessionTTL,
		rememberTTL: rememberTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source and returns m.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	m.now = now
	return m
}

// Issue signs a session token for the account.
func (m *JWTManager) Issue(accountID, username string, remember bool) (*Session, error) {
	now := m.now()
	ttl := m.sessionTTL
	if remember {
		ttl = m.rememberTTL
	}
	expires := now.Add(ttl)

	claims := &Claims{
		AccountID: accountID,
		Username:  username,
		Remember:  remember,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	return &Session{Token: signed, ExpiresAt: expires}, nil
}

// Validate parses and validates a session token, returning the claims.
func (m *JWTManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token claims")
	}
	return claims, nil
}

// Validator adapts Validate to the HTTP auth middleware.
func (m *JWTManager) Validator() middleware.TokenValidator {
	return func(token string) (*middleware.Claims, error) {
		c, err := m.Validate(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{AccountID: c.AccountID, Username: c.Username}, nil
	}
}
