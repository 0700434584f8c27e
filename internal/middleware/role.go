package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/response"
)

// RequireAssignedRole rejects participant tokens that carry no role, since
// question sets are allocated per role.
func RequireAssignedRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if claims.RoleID <= 0 {
			response.AbortFail(c, http.StatusForbidden, response.ErrInvalidRole)
			return
		}

		c.Next()
	}
}
