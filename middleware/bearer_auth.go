package middleware

import (
	"strings"

	"identity-gateway/internal/domain"
	"identity-gateway/utils/logger"

	"github.com/labstack/echo/v4"
)

const (
	authorizationHeader = "Authorization"
	bearerScheme        = "bearer"

	subjectKey = "auth.subject"
)

// BearerAuth creates middleware that verifies the Authorization bearer token
// and stores its subject on the echo context for Subject.
func BearerAuth(verifier domain.SubjectVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(authorizationHeader))
			if !ok {
				return domain.ErrInvalidAccessToken
			}

			req := c.Request()
			subject, err := verifier.VerifySubject(req.Context(), raw)
			if err != nil {
				return err
			}

			c.Set(subjectKey, subject)
			c.SetRequest(req.WithContext(logger.WithUserID(req.Context(), subject)))
			return next(c)
		}
	}
}

// Subject returns the verified token subject set by BearerAuth.
func Subject(c echo.Context) string {
	s, _ := c.Get(subjectKey).(string)
	return s
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
