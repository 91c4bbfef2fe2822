package helpers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/tagcache/go/internal/core/domain/cache"
)

func GetAdminSubjectFromContext(c echo.Context) (string, error) {
	s, ok := GetAdminSubjectRaw(c)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid admin context")
	}
	return s, nil
}

func GetJWTTokenFromContext(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "empty token")
	}
	return token, nil
}

// GetTagsFromQuery collects repeated "tag" parameters as well as comma
// separated "tags" lists.
func GetTagsFromQuery(c echo.Context) []string {
	params := c.QueryParams()
	tags := append([]string{}, params["tag"]...)
	for _, list := range params["tags"] {
		for _, t := range strings.Split(list, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// GetSecondsFromQuery parses a whole number of seconds, clamped to
// cache.MaxLifetime. ok is false when the parameter is absent.
func GetSecondsFromQuery(c echo.Context, name string) (time.Duration, bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, false, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+" parameter")
	}
	if n > int64(cache.MaxLifetime/time.Second) {
		return cache.MaxLifetime, true, nil
	}
	return time.Duration(n) * time.Second, true, nil
}
