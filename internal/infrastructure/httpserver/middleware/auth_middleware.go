package middleware

import (
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tagcache/go/internal/infrastructure/httpserver/helpers"
)

// AdminClaims are the claims carried by an admin bearer token.
type AdminClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// AdminScope must be present in the token for destructive cache operations.
const AdminScope = "cache:admin"

type AdminAuthMiddleware struct {
	secret []byte
	logger *logrus.Logger
}

func NewAdminAuthMiddleware(secret string, logger *logrus.Logger) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{secret: []byte(secret), logger: logger}
}

// Enabled reports whether a signing secret is configured.
func (m *AdminAuthMiddleware) Enabled() bool { return len(m.secret) > 0 }

// RequireAdmin validates an HS256 bearer token carrying the admin scope.
func (m *AdminAuthMiddleware) RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := helpers.GetJWTTokenFromContext(c)
			if err != nil {
				return err
			}
			claims, err := m.parse(tokenString)
			if err != nil {
				if m.logger != nil {
					m.logger.WithFields(logrus.Fields{"ip": c.RealIP(), "path": c.Request().URL.Path, "error": err.Error()}).Warn("admin token rejected")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.Scope != AdminScope {
				return echo.NewHTTPError(http.StatusForbidden, "token lacks admin scope")
			}
			helpers.SetAdminSubject(c, claims.Subject)
			return next(c)
		}
	}
}

func (m *AdminAuthMiddleware) parse(tokenString string) (*AdminClaims, error) {
	if !m.Enabled() {
		return nil, fmt.Errorf("admin authentication is not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// SignAdminToken issues an admin token for subject. Used by operators and tests.
func SignAdminToken(secret, subject string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = subject
	return jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{Scope: AdminScope, RegisteredClaims: claims}).SignedString([]byte(secret))
}
