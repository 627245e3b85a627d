package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the token body issued by the identity service.
type Claims struct {
	BusinessID string `json:"business_id,omitempty"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// KeySource resolves RS256 verification keys by key id.
type KeySource interface {
	Get(keyID string) (*rsa.PublicKey, error)
}

// Verifier checks bearer tokens. HS256 tokens need a shared secret, RS256
// tokens need a key source; a verifier may accept both.
type Verifier struct {
	secret []byte
	keys   KeySource
	leeway time.Duration
}

func NewVerifier(secret string, keys KeySource) *Verifier {
	return &Verifier{secret: []byte(secret), keys: keys, leeway: 30 * time.Second}
}

func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyFunc,
		jwt.WithValidMethods([]string{"HS256", "RS256"}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.Role) == "" {
		return nil, fmt.Errorf("%w: missing sub or role", ErrInvalidToken)
	}
	return claims, nil
}

func (v *Verifier) keyFunc(t *jwt.Token) (any, error) {
	switch t.Method.Alg() {
	case "HS256":
		if len(v.secret) == 0 {
			return nil, errors.New("hs256 not configured")
		}
		return v.secret, nil
	case "RS256":
		if v.keys == nil {
			return nil, errors.New("rs256 not configured")
		}
		kid, _ := t.Header["kid"].(string)
		return v.keys.Get(kid)
	}
	return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// SignHS256 issues a token; used by local tooling and tests.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
