package testutil

import (
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/production-planner-api/middleware"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, issuer string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
		},
	}
}

// SetMockAuthContext sets up a mock authenticated context for testing
func SetMockAuthContext(c *gin.Context, userID string, issuer string, scopes []string) {
	claims := MockValidatedClaims(userID, issuer, scopes)
	c.Set(middleware.UserIDKey, userID)
	c.Set(middleware.ClaimsKey, claims)
}

// MockAuthMiddleware stands in for EnsureValidToken. The user ID comes from
// the X-Test-User header when present, so one router can serve several users.
func MockAuthMiddleware(defaultUserID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := defaultUserID
		if header := c.GetHeader(TestUserHeader); header != "" {
			userID = header
		}
		SetMockAuthContext(c, userID, "https://test.auth0.com/", nil)
		c.Next()
	}
}

// TestUserHeader overrides the user chosen by MockAuthMiddleware
const TestUserHeader = "X-Test-User"

// CreateTestContext creates a test Gin context
func CreateTestContext() (*gin.Context, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	c, engine := gin.CreateTestContext(nil)
	return c, engine
}
