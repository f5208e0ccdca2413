package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/common"
	"github.com/gatherhall/doorsync/internal/server/auth"
)

const (
	ctxKeyStaffID = "staff_id"
	ctxKeyClaims  = "staff_claims"
)

// authRequired verifies the staff token header and stores the staff identity
// in the request context.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader(common.StaffTokenHeaderName)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "missing staff token"})
			return
		}

		claims, err := auth.ParseToken(tokenString, s.secretKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "invalid staff token"})
			return
		}

		c.Set(ctxKeyStaffID, claims.StaffID)
		c.Set(ctxKeyClaims, claims)
		c.Next()
	}
}

// requireRole gates a route on a role carried by the verified token.
func (s *Server) requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := c.MustGet(ctxKeyClaims).(*auth.StaffClaims)
		if !ok || !claims.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, api.ErrorResponse{Error: "missing required role: " + role})
			return
		}
		c.Next()
	}
}

func staffID(c *gin.Context) string {
	return c.GetString(ctxKeyStaffID)
}
