package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/production-planner-api/services"
)

// AssignJobRequest represents the request body for rostering a member
type AssignJobRequest struct {
	ProductionItemID uint    `json:"production_item_id" binding:"required"`
	MembershipID     uint    `json:"membership_id" binding:"required"`
	AssignedDate     string  `json:"assigned_date" binding:"required"`
	Notes            *string `json:"notes"`
}

// AssignJob handles POST /api/v1/job-assignments
func AssignJob(c *gin.Context) {
	companyID, ok := requireCompany(c)
	if !ok {
		return
	}

	var req AssignJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	assignment, err := services.GetServices().Assignments.Assign(c.Request.Context(), companyID, services.AssignInput{
		ProductionItemID: req.ProductionItemID,
		MembershipID:     req.MembershipID,
		AssignedDate:     req.AssignedDate,
		Notes:            req.Notes,
	})
	if err != nil {
		respondError(c, "AssignJob", err)
		return
	}

	respondSuccess(c, http.StatusCreated, assignment)
}

// ListAssignments handles GET /api/v1/job-assignments?membership_id=&production_item_id=&assigned_date=
func ListAssignments(c *gin.Context) {
	companyID, ok := requireCompany(c)
	if !ok {
		return
	}
	membershipID, ok := queryID(c, "membership_id")
	if !ok {
		return
	}
	itemID, ok := queryID(c, "production_item_id")
	if !ok {
		return
	}
	date, ok := queryDate(c, "assigned_date")
	if !ok {
		return
	}

	assignments, err := services.GetServices().Assignments.ListAssignments(c.Request.Context(), companyID, services.AssignmentFilter{
		MembershipID:     membershipID,
		ProductionItemID: itemID,
		AssignedDate:     date,
	})
	if err != nil {
		respondError(c, "ListAssignments", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    assignments,
		"count":   len(assignments),
	})
}

// UnassignJob handles DELETE /api/v1/job-assignments/:id
func UnassignJob(c *gin.Context) {
	companyID, ok := requireCompany(c)
	if !ok {
		return
	}
	assignmentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := services.GetServices().Assignments.Unassign(c.Request.Context(), companyID, assignmentID); err != nil {
		respondError(c, "UnassignJob", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Job assignment removed",
	})
}
