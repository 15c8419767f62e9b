package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quizmaster/quizmaster/internal/domain"
	"github.com/quizmaster/quizmaster/internal/errors"
)

const principalKey = "quizmaster/principal"

// authenticated resolves the bearer token to a Principal once per request.
func (a *API) authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || token == "" {
			abortWithError(c, errors.New(errors.CodeUnauthenticated,
				errors.WithMessagef("missing bearer token")))
			return
		}

		p, err := a.ids.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

func (a *API) requireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if principalFrom(c).Role != role {
			abortWithError(c, errors.New(errors.CodePermissionDenied,
				errors.WithMessagef("%s role required", role)))
			return
		}

		c.Next()
	}
}

// principalFrom returns the request's principal. Only valid behind the
// authenticated middleware.
func principalFrom(c *gin.Context) domain.Principal {
	p, _ := c.Get(principalKey)
	principal, _ := p.(domain.Principal)
	return principal
}
