package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/production-planner-api/config"
	"github.com/kendall-kelly/production-planner-api/services"
)

// CompanyHeader lets a member of several companies pick which one to act for
const CompanyHeader = "X-Company-ID"

// CompanyIDKey holds the resolved company on the Gin context
const CompanyIDKey = "company_id"

// ResolveCompany maps the authenticated user onto a company and stores its id
// under CompanyIDKey. It must run after EnsureValidToken.
func ResolveCompany(resolver services.CompanyResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
			return
		}

		if header := c.GetHeader(CompanyHeader); header != "" {
			companyID, err := strconv.ParseUint(header, 10, 64)
			if err != nil || companyID == 0 {
				abortWithError(c, http.StatusBadRequest, "INVALID_COMPANY_ID", "X-Company-ID must be a positive integer")
				return
			}
			ok, err := resolver.HasAccess(c.Request.Context(), userID, uint(companyID))
			if err != nil {
				config.LogError(config.GetLogger(), "middleware", "ResolveCompany", "check company access", userID, err)
				abortWithError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to resolve company")
				return
			}
			if !ok {
				abortWithError(c, http.StatusForbidden, "FORBIDDEN", "You are not a member of this company")
				return
			}
			c.Set(CompanyIDKey, uint(companyID))
			c.Next()
			return
		}

		companyID, err := resolver.CompanyIDForUser(c.Request.Context(), userID)
		if services.IsKind(err, services.KindNotFound) {
			abortWithError(c, http.StatusForbidden, "NO_COMPANY", "User is not a member of any company")
			return
		}
		if err != nil {
			config.LogError(config.GetLogger(), "middleware", "ResolveCompany", "resolve company", userID, err)
			abortWithError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to resolve company")
			return
		}

		c.Set(CompanyIDKey, companyID)
		c.Next()
	}
}

// GetCompanyID extracts the resolved company ID from the Gin context
func GetCompanyID(c *gin.Context) (uint, error) {
	companyID, exists := c.Get(CompanyIDKey)
	if !exists {
		return 0, &AuthError{Code: "MISSING_COMPANY_ID", Message: "Company ID not found in context"}
	}

	id, ok := companyID.(uint)
	if !ok {
		return 0, &AuthError{Code: "INVALID_COMPANY_ID", Message: "Company ID is not a uint"}
	}

	return id, nil
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
