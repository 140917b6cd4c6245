package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	domainuser "getmyguide/internal/domain/user"
)

const principalContextKey = "getmyguide.principal"

// Claims is the bearer token body. Tokens are issued by the identity
// service; this process only verifies them.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type principal struct {
	Actor domainuser.Actor
	Email string
}

// AuthMiddleware resolves the principal from an HS256 bearer token.
// Requests without a valid token continue anonymously; handlers that need
// a principal reject them.
type AuthMiddleware struct {
	Secret []byte
	Logger *slog.Logger
	Clock  func() time.Time
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || len(m.Secret) == 0 {
		c.Next()
		return
	}
	p, err := m.parse(token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	setPrincipal(c, p)
	c.Next()
}

var errInvalidPrincipal = errors.New("auth: token lacks subject or role")

func (m AuthMiddleware) parse(raw string) (principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.Clock != nil {
		opts = append(opts, jwt.WithTimeFunc(m.Clock))
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.Secret, nil
	}, opts...)
	if err != nil {
		return principal{}, err
	}
	role, err := domainuser.ParseRole(claims.Role)
	if err != nil || strings.TrimSpace(claims.Subject) == "" {
		return principal{}, errInvalidPrincipal
	}
	return principal{
		Actor: domainuser.Actor{ID: domainuser.ID(claims.Subject), Role: role},
		Email: claims.Email,
	}, nil
}

// SignToken issues an HS256 token for sub. Used by tests and local tooling.
func SignToken(secret []byte, sub string, role domainuser.Role, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:  string(role),
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

// requireAuth writes 401 when no principal was resolved. Role checks are
// left to the command pipeline.
func requireAuth(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	token := strings.TrimSpace(header[7:])
	return token
}
