package http

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"
)

type Credentials struct {
	User string
	// PasswordHash is a bcrypt hash. Empty locks every protected route.
	PasswordHash string
}

func BasicAuth(creds Credentials) echo.MiddlewareFunc {
	return middleware.BasicAuth(func(user, password string, c echo.Context) (bool, error) {
		if creds.PasswordHash == "" {
			return false, nil
		}
		if subtle.ConstantTimeCompare([]byte(user), []byte(creds.User)) != 1 {
			return false, nil
		}
		return bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)) == nil, nil
	})
}
