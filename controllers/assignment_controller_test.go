package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/kendall-kelly/production-planner-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createPlanItem(t *testing.T, s *seed) uint {
	t.Helper()
	w, response := doJSON(t, planRouter(s.owner.Auth0ID, s.company.ID), http.MethodPost, "/production-plans", planBody(s))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	items := response["data"].(map[string]interface{})["items"].([]interface{})
	return uint(items[0].(map[string]interface{})["id"].(float64))
}

func countAssignments(db *gorm.DB) int64 {
	var count int64
	db.Model(&models.ProductionJobAssignment{}).Count(&count)
	return count
}

func TestAssignJob(t *testing.T) {
	db, s := setupTestServices(t)
	itemID := createPlanItem(t, s)
	router := assignmentRouter(s.owner.Auth0ID, s.company.ID)

	body := map[string]interface{}{
		"production_item_id": itemID,
		"membership_id":      s.bakerMember.ID,
		"assigned_date":      "2024-01-02",
		"notes":              "ovens at 5",
	}

	w, response := doJSON(t, router, http.MethodPost, "/job-assignments", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "2024-01-02", data["assigned_date"])
	assert.Equal(t, "ovens at 5", data["notes"])
	assert.Equal(t, "Ben Baker", data["membership"].(map[string]interface{})["user"].(map[string]interface{})["name"])

	w, response = doJSON(t, router, http.MethodPost, "/job-assignments", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_ASSIGNED", errorCode(response))
	assert.Equal(t, int64(1), countAssignments(db))

	body["membership_id"] = s.otherMember.ID
	body["assigned_date"] = "2024-01-03"
	w, response = doJSON(t, router, http.MethodPost, "/job-assignments", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(response))

	delete(body, "membership_id")
	w, response = doJSON(t, router, http.MethodPost, "/job-assignments", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(response))

	assert.Equal(t, int64(1), countAssignments(db))
}

func TestListAndUnassignJobs(t *testing.T) {
	db, s := setupTestServices(t)
	itemID := createPlanItem(t, s)
	router := assignmentRouter(s.owner.Auth0ID, s.company.ID)

	for _, day := range []string{"2024-01-02", "2024-01-03"} {
		w, _ := doJSON(t, router, http.MethodPost, "/job-assignments", map[string]interface{}{
			"production_item_id": itemID,
			"membership_id":      s.bakerMember.ID,
			"assigned_date":      day,
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, response := doJSON(t, router, http.MethodGet, "/job-assignments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), response["count"])

	w, response = doJSON(t, router, http.MethodGet, "/job-assignments?assigned_date=2024-01-03", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(1), response["count"])
	assignment := response["data"].([]interface{})[0].(map[string]interface{})
	assignmentID := uint(assignment["id"].(float64))

	w, response = doJSON(t, router, http.MethodGet, fmt.Sprintf("/job-assignments?membership_id=%d", s.ownerMember.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), response["count"])

	outsider := assignmentRouter("auth0|outsider", s.otherCompany.ID)
	w, _ = doJSON(t, outsider, http.MethodDelete, fmt.Sprintf("/job-assignments/%d", assignmentID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/job-assignments/%d", assignmentID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), countAssignments(db))

	w, response = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/job-assignments/%d", assignmentID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ASSIGNMENT_NOT_FOUND", errorCode(response))
}
