package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/response"
)

// RequirePermission lets an admin through only when the token grants code.
func RequirePermission(code string) gin.HandlerFunc {
	return RequireAnyPermission(code)
}

// RequireAnyPermission lets an admin through when the token grants at least one
// of codes. It must run after RequireAdminJWT.
func RequireAnyPermission(codes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if !grantsAny(claims.Permissions, codes) {
			response.AbortFail(c, http.StatusForbidden, response.ErrPermissionDenied)
			return
		}
		c.Next()
	}
}

func grantsAny(granted, wanted []string) bool {
	return slices.ContainsFunc(wanted, func(code string) bool {
		return slices.Contains(granted, code)
	})
}
