package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/kendall-kelly/production-planner-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planBody(s *seed) map[string]interface{} {
	return map[string]interface{}{
		"name":       "Week 1",
		"start_date": "2024-01-01",
		"end_date":   "2024-01-07",
		"items": []map[string]interface{}{
			{
				"recipe_id": s.croissant.ID,
				"quantity":  48,
				"allocations": []map[string]interface{}{
					{"destination": "wholesale", "customer_id": s.cafe.ID, "quantity": "30"},
					{"destination": "retail", "quantity": 18},
				},
			},
			{"recipe_id": s.sourdough.ID, "quantity": "12.5"},
		},
	}
}

func TestCreatePlan(t *testing.T) {
	db, s := setupTestServices(t)
	router := planRouter(s.owner.Auth0ID, s.company.ID)

	w, response := doJSON(t, router, http.MethodPost, "/production-plans", planBody(s))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, response["success"])

	data := response["data"].(map[string]interface{})
	assert.Equal(t, "Week 1", data["name"])
	assert.Equal(t, "2024-01-01", data["start_date"])
	assert.Equal(t, "2024-01-07", data["end_date"])
	assert.Equal(t, float64(s.owner.ID), data["created_by_id"])

	items := data["items"].([]interface{})
	require.Len(t, items, 2)
	first := items[0].(map[string]interface{})
	assert.Equal(t, "48", first["quantity"])
	assert.Equal(t, "Croissant", first["recipe"].(map[string]interface{})["name"])
	allocations := first["allocations"].([]interface{})
	require.Len(t, allocations, 2)
	assert.Equal(t, "Corner Cafe", allocations[0].(map[string]interface{})["customer"].(map[string]interface{})["name"])
	assert.Equal(t, "12.5", items[1].(map[string]interface{})["quantity"])

	var count int64
	db.Model(&models.ProductionPlan{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreatePlanValidation(t *testing.T) {
	_, s := setupTestServices(t)
	router := planRouter(s.owner.Auth0ID, s.company.ID)

	tests := []struct {
		name         string
		mutate       func(body map[string]interface{})
		expectedCode string
	}{
		{"missing name", func(b map[string]interface{}) { delete(b, "name") }, "VALIDATION_ERROR"},
		{"missing dates", func(b map[string]interface{}) { delete(b, "end_date") }, "VALIDATION_ERROR"},
		{"bad date", func(b map[string]interface{}) { b["start_date"] = "01/01/2024" }, "INVALID_DATE"},
		{"inverted window", func(b map[string]interface{}) { b["start_date"] = "2024-02-01" }, "INVALID_DATE_RANGE"},
		{"no items", func(b map[string]interface{}) { b["items"] = []interface{}{} }, "VALIDATION_ERROR"},
		{"non-numeric quantity", func(b map[string]interface{}) {
			b["items"] = []map[string]interface{}{{"recipe_id": s.croissant.ID, "quantity": "lots"}}
		}, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := planBody(s)
			tt.mutate(body)

			w, response := doJSON(t, router, http.MethodPost, "/production-plans", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, response["success"])
			assert.Equal(t, tt.expectedCode, errorCode(response))
		})
	}
}

func TestGetUpdateDeletePlan(t *testing.T) {
	_, s := setupTestServices(t)
	router := planRouter(s.owner.Auth0ID, s.company.ID)

	w, response := doJSON(t, router, http.MethodPost, "/production-plans", planBody(s))
	require.Equal(t, http.StatusCreated, w.Code)
	planID := uint(response["data"].(map[string]interface{})["id"].(float64))
	path := fmt.Sprintf("/production-plans/%d", planID)

	w, response = doJSON(t, router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Week 1", response["data"].(map[string]interface{})["name"])

	body := planBody(s)
	body["name"] = "Week 1 revised"
	body["items"] = []map[string]interface{}{{"recipe_id": s.sourdough.ID, "quantity": 20}}
	w, response = doJSON(t, router, http.MethodPut, path, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "Week 1 revised", data["name"])
	assert.Len(t, data["items"], 1)

	// another company cannot see or change it
	outsider := planRouter("auth0|outsider", s.otherCompany.ID)
	w, response = doJSON(t, outsider, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(response))
	w, _ = doJSON(t, outsider, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, response = doJSON(t, router, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, response["success"])

	w, response = doJSON(t, router, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PLAN_NOT_FOUND", errorCode(response))
}

func TestListPlans(t *testing.T) {
	_, s := setupTestServices(t)
	router := planRouter(s.owner.Auth0ID, s.company.ID)

	for _, start := range []string{"2024-01-01", "2024-03-01"} {
		body := planBody(s)
		body["start_date"] = start
		body["end_date"] = start
		w, _ := doJSON(t, router, http.MethodPost, "/production-plans", body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, response := doJSON(t, router, http.MethodGet, "/production-plans", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), response["count"])

	w, response = doJSON(t, router, http.MethodGet, "/production-plans?from=2024-02-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), response["count"])

	w, response = doJSON(t, router, http.MethodGet, "/production-plans?to=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_DATE", errorCode(response))
}

func TestPlanRoutesNeedCompany(t *testing.T) {
	_, s := setupTestServices(t)
	router := planRouter(s.owner.Auth0ID, 0)

	w, response := doJSON(t, router, http.MethodGet, "/production-plans", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(response))
}

func TestPlanInvalidID(t *testing.T) {
	_, s := setupTestServices(t)
	router := planRouter(s.owner.Auth0ID, s.company.ID)

	w, response := doJSON(t, router, http.MethodGet, "/production-plans/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", errorCode(response))
}
