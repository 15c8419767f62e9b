package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quizmaster/quizmaster/internal/errors"
)

// pathID returns the named ID path parameter. IDs are uuid-typed all the
// way down to the query parameters, so a malformed value is rejected here
// as not-found instead of failing inside the driver.
func pathID(c *gin.Context, param string) (string, bool) {
	id := c.Param(param)
	if _, err := uuid.Parse(id); err != nil {
		abortWithError(c, errors.New(errors.CodeNotFound,
			errors.WithMessagef("%s not found: %s", strings.TrimSuffix(param, "_id"), id)))
		return "", false
	}

	return id, true
}
