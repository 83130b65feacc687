package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/production-planner-api/config"
	"github.com/kendall-kelly/production-planner-api/middleware"
	"github.com/kendall-kelly/production-planner-api/models"
	"github.com/kendall-kelly/production-planner-api/services"
)

var kindStatus = map[services.ErrorKind]int{
	services.KindNotFound:     http.StatusNotFound,
	services.KindForbidden:    http.StatusForbidden,
	services.KindInvalidInput: http.StatusBadRequest,
	services.KindConflict:     http.StatusConflict,
	services.KindInvalidState: http.StatusUnprocessableEntity,
}

func respondSuccess(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondError maps service errors onto the JSON error envelope. Anything
// that is not a service error is logged and reported as a database error.
func respondError(c *gin.Context, funcName string, err error) {
	if svcErr, ok := services.AsError(err); ok {
		status, known := kindStatus[svcErr.Kind]
		if known {
			respondErrorCode(c, status, svcErr.Code, svcErr.Message)
			return
		}
	}

	config.LogError(config.GetLogger(), "controllers", funcName, c.Request.Method+" "+c.FullPath(), nil, err)
	respondErrorCode(c, http.StatusInternalServerError, "DATABASE_ERROR", "An unexpected error occurred")
}

func respondValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// requireCompany reads the company resolved by middleware; it writes the
// error response itself and reports false when none is present.
func requireCompany(c *gin.Context) (uint, bool) {
	companyID, err := middleware.GetCompanyID(c)
	if err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not resolve company")
		return 0, false
	}
	return companyID, true
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryID(c *gin.Context, name string) (*uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_QUERY", "Invalid "+name)
		return nil, false
	}
	v := uint(id)
	return &v, true
}

func queryDate(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_DATE", err.Error())
		return nil, false
	}
	return &d, true
}

// currentUserID looks up the local user row of the authenticated caller
func currentUserID(c *gin.Context) *uint {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		return nil
	}
	var user models.User
	if err := config.GetDB().WithContext(c.Request.Context()).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		return nil
	}
	return &user.ID
}
