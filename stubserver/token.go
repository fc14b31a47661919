package stubserver

import (
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// UserClaims is the payload of the stub's access tokens, matching the
// production backend's JWT shape.
type UserClaims struct {
	TenantID int    `json:"tenant_id"`
	Email    string `json:"email"`
	jwtlib.RegisteredClaims
}

// TokenIssuer creates and verifies HS256 user tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer with the given signing secret and
// token lifetime.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the user and returns it with its lifetime in
// seconds, the shape the session response reports.
func (i *TokenIssuer) Issue(userID, tenantID int, email string) (string, int, error) {
	now := NowTimeFunc()
	claims := UserClaims{
		TenantID: tenantID,
		Email:    email,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", 0, errors.Wrap(err, "[TokenIssuer] sign")
	}
	return signed, int(i.ttl.Seconds()), nil
}

// Parse validates a token and returns its claims.
func (i *TokenIssuer) Parse(token string) (*UserClaims, error) {
	claims := &UserClaims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }))
	if err != nil {
		return nil, errors.Wrap(err, "[TokenIssuer] parse")
	}
	if !parsed.Valid {
		return nil, errors.New("[TokenIssuer] invalid token")
	}
	return claims, nil
}

// UserID returns the numeric subject of the claims.
func (c *UserClaims) UserID() int {
	id, _ := strconv.Atoi(c.Subject)
	return id
}
