package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is either resolved from a verified token or unresolved. Callers
// that get an unresolved identity must collect a display name instead; the
// rest of the system treats both as one opaque voter string.
type Identity struct {
	id       string
	resolved bool
}

func Resolved(id string) Identity {
	return Identity{id: id, resolved: true}
}

func Unresolved() Identity {
	return Identity{}
}

// ID returns the stable voter identifier and whether one was resolved.
func (i Identity) ID() (string, bool) {
	return i.id, i.resolved
}

// Resolver verifies HMAC-signed access tokens. An invalid or absent token is
// not an error here: the request simply proceeds as anonymous.
type Resolver struct {
	secret []byte
}

func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

func (r *Resolver) Resolve(accessToken string) Identity {
	if accessToken == "" {
		return Unresolved()
	}

	token, err := jwt.Parse(accessToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return Unresolved()
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Unresolved()
	}

	uid, ok := claims["uid"].(string)
	if !ok || uid == "" {
		return Unresolved()
	}

	return Resolved(uid)
}

// NewAccessToken signs a token the Resolver accepts. Used by tests and local
// tooling; production tokens come from the external identity service.
func NewAccessToken(secret, uid string, ttl time.Duration) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)
	claims := token.Claims.(jwt.MapClaims)

	claims["uid"] = uid
	claims["typ"] = "access"
	claims["exp"] = time.Now().Add(ttl).Unix()

	return token.SignedString([]byte(secret))
}
