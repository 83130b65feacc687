package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/production-planner-api/config"
)

// Keys EnsureValidToken sets on the Gin context
const (
	UserIDKey = "user_id"
	ClaimsKey = "validated_claims"
)

const jwksCacheTTL = 5 * time.Minute

// CustomClaims are the authorization claims planner routes look at. Auth0
// issues RBAC permissions in their own claim next to the OAuth scope string.
type CustomClaims struct {
	Scope       string   `json:"scope"`
	Permissions []string `json:"permissions"`
}

// Validate satisfies validator.CustomClaims; permissions are checked per route.
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// Grants reports whether the token carries permission, either as a scope or
// as an RBAC permission.
func (c CustomClaims) Grants(permission string) bool {
	if permission == "" {
		return false
	}
	return slices.Contains(strings.Fields(c.Scope), permission) || slices.Contains(c.Permissions, permission)
}

// NewTokenValidator builds an RS256 validator for the configured Auth0 tenant
// and audience, with signing keys fetched from the tenant's JWKS endpoint.
func NewTokenValidator(cfg *config.Config) (jwtmiddleware.ValidateToken, error) {
	if cfg.Auth0Domain == "" {
		return nil, errors.New("AUTH0_DOMAIN is not set")
	}
	issuerURL, err := url.Parse("https://" + cfg.Auth0Domain + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse the issuer url: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, jwksCacheTTL)
	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{cfg.Auth0Audience},
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &CustomClaims{}
		}),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}
	return jwtValidator.ValidateToken, nil
}

// EnsureValidToken rejects requests without a valid bearer token. On success
// the token subject is stored under UserIDKey and the claims under ClaimsKey,
// and the claims are also attached to the request context the way
// jwtmiddleware does.
func EnsureValidToken(validate jwtmiddleware.ValidateToken) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := jwtmiddleware.AuthHeaderTokenExtractor(c.Request)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "INVALID_AUTH_HEADER", "Authorization header format must be Bearer {token}")
			return
		}
		if token == "" {
			abortWithError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header is required")
			return
		}

		claims, err := validate(c.Request.Context(), token)
		if err != nil {
			config.GetLogger().WithError(err).WithField("path", c.Request.URL.Path).Warn("jwt validation failed")
			abortWithError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Failed to validate JWT.")
			return
		}

		validated, ok := claims.(*validator.ValidatedClaims)
		if !ok || validated.RegisteredClaims.Subject == "" {
			abortWithError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Token does not identify a user")
			return
		}

		c.Set(UserIDKey, validated.RegisteredClaims.Subject)
		c.Set(ClaimsKey, validated)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), jwtmiddleware.ContextKey{}, validated))
		c.Next()
	}
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) (string, error) {
	value, exists := c.Get(UserIDKey)
	if !exists {
		return "", &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}
	userID, ok := value.(string)
	if !ok {
		return "", &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not a string"}
	}
	return userID, nil
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	value, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}
	claims, ok := value.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}
	return claims, nil
}

// RequirePermission refuses tokens that do not grant permission
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := GetClaims(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "MISSING_CLAIMS", "Could not retrieve token claims")
			return
		}

		custom, ok := claims.CustomClaims.(*CustomClaims)
		if !ok || !custom.Grants(permission) {
			abortWithError(c, http.StatusForbidden, "INSUFFICIENT_SCOPE", "Insufficient permissions to access this resource")
			return
		}

		c.Next()
	}
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
