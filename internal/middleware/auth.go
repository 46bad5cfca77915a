package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/livepoll/livepoll/internal/identity"
)

const IdentityKey = "identity"

type AuthMiddleware struct {
	resolver *identity.Resolver
}

func NewAuthMiddleware(resolver *identity.Resolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Middleware resolves the bearer token when one is present and stores the
// result on the context. It never rejects a request: anonymous callers vote
// under a supplied name, which the handlers require instead.
func (m *AuthMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := extractTokenFromHeader(c.GetHeader("Authorization"))
		c.Set(IdentityKey, m.resolver.Resolve(accessToken))
		c.Next()
	}
}

// FromContext returns the request identity, unresolved when the middleware
// did not run or the token failed verification.
func FromContext(c *gin.Context) identity.Identity {
	value, exists := c.Get(IdentityKey)
	if !exists {
		return identity.Unresolved()
	}

	ident, ok := value.(identity.Identity)
	if !ok {
		return identity.Unresolved()
	}

	return ident
}

func extractTokenFromHeader(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
