package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"ethioshop.com/app/internal/http/middleware"
	"ethioshop.com/app/internal/http/validation"
	"ethioshop.com/app/internal/modules/audit"
	"ethioshop.com/app/internal/shared/apperr"
)

func parseInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func pagesFromTotal(total int64, size int) int {
	if size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

func originOf(c *gin.Context) audit.Origin {
	return audit.Origin{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// bindJSON binds and validates the body into dst, recording a 400 with field
// messages on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Validation error.", validation.FromBindError(err, dst)).WithCause(err))
		return false
	}
	return true
}
