package helpers

import (
	"github.com/labstack/echo/v4"
)

type ctxKey string

const (
	keyAdminSubject ctxKey = "admin_subject"
)

func SetAdminSubject(c echo.Context, sub string) { c.Set(string(keyAdminSubject), sub) }
func GetAdminSubjectRaw(c echo.Context) (string, bool) {
	v := c.Get(string(keyAdminSubject))
	s, ok := v.(string)
	return s, ok
}
