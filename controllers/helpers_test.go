package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/production-planner-api/config"
	"github.com/kendall-kelly/production-planner-api/models"
	"github.com/kendall-kelly/production-planner-api/services"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig())
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get test database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := config.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

// mockAuthMiddleware stands in for EnsureValidToken and ResolveCompany.
// A zero companyID leaves the company unresolved.
func mockAuthMiddleware(auth0ID string, companyID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", auth0ID)
		if companyID != 0 {
			c.Set("company_id", companyID)
		}
		c.Next()
	}
}

type seed struct {
	company      models.Company
	otherCompany models.Company
	owner        models.User
	ownerMember  models.Membership
	bakerMember  models.Membership
	otherMember  models.Membership
	croissant    models.Recipe
	sourdough    models.Recipe
	cafe         models.WholesaleCustomer
}

// setupTestServices seeds a bakery and installs the services globally
func setupTestServices(t *testing.T) (*gorm.DB, *seed) {
	db := setupTestDB(t)
	config.SetDB(db)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svcs := services.Build(db, services.NewGormDirectory(db), services.NewLogEventSink(logger), services.NoopLocker{}, logger)
	services.SetServices(svcs)

	s := &seed{
		company:      models.Company{Name: "Rise Bakery"},
		otherCompany: models.Company{Name: "Crumb Co"},
		owner:        models.User{Auth0ID: "auth0|owner", Name: "Olive Owner", Email: "olive@rise.test"},
	}
	create(t, db, &s.company)
	create(t, db, &s.otherCompany)
	create(t, db, &s.owner)
	baker := models.User{Auth0ID: "auth0|baker", Name: "Ben Baker", Email: "ben@rise.test"}
	outsider := models.User{Auth0ID: "auth0|outsider", Name: "Ola Outsider", Email: "ola@crumb.test"}
	create(t, db, &baker)
	create(t, db, &outsider)

	s.ownerMember = models.Membership{CompanyID: s.company.ID, UserID: s.owner.ID, Role: "owner"}
	s.bakerMember = models.Membership{CompanyID: s.company.ID, UserID: baker.ID, Role: "staff"}
	s.otherMember = models.Membership{CompanyID: s.otherCompany.ID, UserID: outsider.ID, Role: "staff"}
	create(t, db, &s.ownerMember)
	create(t, db, &s.bakerMember)
	create(t, db, &s.otherMember)

	s.croissant = models.Recipe{CompanyID: s.company.ID, Name: "Croissant", YieldQuantity: decimal.NewFromInt(24), YieldUnit: "pieces"}
	s.sourdough = models.Recipe{CompanyID: s.company.ID, Name: "Sourdough", YieldQuantity: decimal.NewFromInt(12), YieldUnit: "loaves"}
	create(t, db, &s.croissant)
	create(t, db, &s.sourdough)

	s.cafe = models.WholesaleCustomer{CompanyID: s.company.ID, Name: "Corner Cafe"}
	create(t, db, &s.cafe)

	return db, s
}

func create(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("Failed to seed %T: %v", value, err)
	}
}

// doJSON sends body (nil for none) and decodes the JSON response
func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Response is not valid JSON: %s", w.Body.String())
	}
	return w, response
}

func errorCode(response map[string]interface{}) string {
	errObj, ok := response["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errObj["code"].(string)
	return code
}

func planRouter(auth0ID string, companyID uint) *gin.Engine {
	router := setupTestRouter()
	group := router.Group("/production-plans", mockAuthMiddleware(auth0ID, companyID))
	group.GET("", ListPlans)
	group.POST("", CreatePlan)
	group.GET("/:id", GetPlan)
	group.PUT("/:id", UpdatePlan)
	group.DELETE("/:id", DeletePlan)
	return router
}

func orderRouter(auth0ID string, companyID uint) *gin.Engine {
	router := setupTestRouter()
	group := router.Group("/wholesale-orders", mockAuthMiddleware(auth0ID, companyID))
	group.GET("", ListOrders)
	group.POST("", CreateOrder)
	group.GET("/:id", GetOrder)
	group.PATCH("/:id/status", UpdateOrderStatus)
	group.POST("/:id/generate-next", GenerateNextOrder)
	return router
}

func assignmentRouter(auth0ID string, companyID uint) *gin.Engine {
	router := setupTestRouter()
	group := router.Group("/job-assignments", mockAuthMiddleware(auth0ID, companyID))
	group.GET("", ListAssignments)
	group.POST("", AssignJob)
	group.DELETE("/:id", UnassignJob)
	return router
}
