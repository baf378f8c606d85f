package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/campushub/assess-backend/internal/config"
	"github.com/campushub/assess-backend/internal/response"
)

// ContextKeyIdentity is the Gin context key for the resolved identity.
const ContextKeyIdentity = "identity"

// DefaultUserID is the identity used when no token is presented. The
// engine runs single-user; the token machinery exists so storage can be
// scoped per user as soon as multiple identities appear.
const DefaultUserID = "local"

// Claims extends JWT registered claims with the display name.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// Identity is the resolved caller identity attached to each request.
type Identity struct {
	UserID string
	Name   string
}

// IssueToken mints an HS256 token for a user.
func IssueToken(cfg *config.Config, userID, name string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.JWTExpiry)),
		},
		Name: name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a signed token and returns its claims.
func ParseToken(cfg *config.Config, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ResolveIdentity attaches the caller identity to the request. A missing
// Authorization header resolves to the single-user default; a present but
// invalid bearer token is rejected.
func ResolveIdentity(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Set(ContextKeyIdentity, Identity{UserID: DefaultUserID})
			c.Next()
			return
		}

		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		claims, err := ParseToken(cfg, tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyIdentity, Identity{UserID: claims.Subject, Name: claims.Name})
		c.Next()
	}
}

// GetIdentity retrieves the resolved identity from the Gin context.
func GetIdentity(c *gin.Context) Identity {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return Identity{UserID: DefaultUserID}
	}
	id, ok := val.(Identity)
	if !ok {
		return Identity{UserID: DefaultUserID}
	}
	return id
}
