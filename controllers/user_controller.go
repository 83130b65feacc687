package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/production-planner-api/config"
	"github.com/kendall-kelly/production-planner-api/middleware"
	"github.com/kendall-kelly/production-planner-api/models"
	"gorm.io/gorm"
)

// UpdateUserRequest represents the request body for updating a user profile
type UpdateUserRequest struct {
	Name  string `json:"name" binding:"omitempty"`
	Email string `json:"email" binding:"omitempty,email"`
}

// GetMyProfile handles GET /api/v1/me - the caller with their company memberships
func GetMyProfile(c *gin.Context) {
	// Extract Auth0 user ID from JWT token
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return
	}

	db := config.GetDB()
	var user models.User
	err = db.WithContext(c.Request.Context()).
		Preload("Memberships", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("auth0_id = ?", auth0ID).
		First(&user).Error
	if err != nil {
		respondErrorCode(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

// UpdateMyProfile handles PUT /api/v1/me - updates current user's profile
func UpdateMyProfile(c *gin.Context) {
	// Extract Auth0 user ID from JWT token
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	var user models.User
	if err := db.Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		respondErrorCode(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found")
		return
	}

	// Update fields if provided
	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Email != "" {
		updates["email"] = req.Email
	}

	if len(updates) > 0 {
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			// Duplicate email (works with PostgreSQL, MySQL and SQLite)
			errMsg := strings.ToLower(err.Error())
			if strings.Contains(errMsg, "duplicate") || strings.Contains(errMsg, "unique") {
				respondErrorCode(c, http.StatusConflict, "EMAIL_EXISTS", "A user with this email already exists")
				return
			}
			respondError(c, "UpdateMyProfile", err)
			return
		}
		if err := db.First(&user, user.ID).Error; err != nil {
			respondError(c, "UpdateMyProfile", err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}
