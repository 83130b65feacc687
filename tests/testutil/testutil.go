package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/kendall-kelly/production-planner-api/config"
	"github.com/kendall-kelly/production-planner-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// RequireTestEnvironmentOrSkip is similar to RequireTestEnvironment but skips the test
// instead of failing it. Use this for optional tests that should only run in test environment.
func RequireTestEnvironmentOrSkip(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Skipf("Skipping test: GO_ENV must be 'test' (current: %q)", env)
	}
}

// MustSetTestEnvironment sets GO_ENV to test and fails if it cannot be set.
// Use this in TestMain or suite setup functions.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	if err := os.Setenv("GO_ENV", "test"); err != nil {
		t.Fatalf("Failed to set GO_ENV=test: %v", err)
	}

	// Verify it was set
	if os.Getenv("GO_ENV") != "test" {
		t.Fatal("Failed to verify GO_ENV=test")
	}
}

// PrintEnvironmentInfo prints the current test environment configuration.
// Useful for debugging test environment issues.
func PrintEnvironmentInfo() {
	fmt.Printf("Test Environment Info:\n")
	fmt.Printf("  GO_ENV: %s\n", os.Getenv("GO_ENV"))
	fmt.Printf("  DATABASE_URL: %s\n", maskDatabaseURL(os.Getenv("DATABASE_URL")))
	fmt.Printf("  EVENT_SINK: %s\n", os.Getenv("EVENT_SINK"))
}

// maskDatabaseURL hides everything after the scheme and flags URLs that
// do not look like a test database
func maskDatabaseURL(url string) string {
	if url == "" {
		return "(not set)"
	}
	masked := url
	if i := strings.Index(url, "://"); i >= 0 {
		masked = url[:i+3] + "..."
	}
	if !strings.Contains(url, "test") && !strings.Contains(url, ":memory:") {
		masked += " [WARNING: may not be test DB]"
	}
	return masked
}

// NewTestDB opens a migrated sqlite :memory: database. Every connection to
// :memory: is a separate database, so the pool is pinned to one.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

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
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// Bakery is a seeded company with staff, recipes and wholesale customers,
// plus a second company that must stay invisible to it
type Bakery struct {
	Company      models.Company
	OtherCompany models.Company
	Owner        models.User
	Baker        models.User
	Outsider     models.User
	OwnerMember  models.Membership
	BakerMember  models.Membership
	OtherMember  models.Membership
	Croissant    models.Recipe
	Sourdough    models.Recipe
	Cafe         models.WholesaleCustomer
	Hotel        models.WholesaleCustomer
}

// SeedBakery fills db with a Bakery
func SeedBakery(t *testing.T, db *gorm.DB) *Bakery {
	t.Helper()

	b := &Bakery{
		Company:      models.Company{Name: "Rise Bakery"},
		OtherCompany: models.Company{Name: "Crumb Co"},
		Owner:        models.User{Auth0ID: "auth0|owner", Name: "Olive Owner", Email: "olive@rise.test"},
		Baker:        models.User{Auth0ID: "auth0|baker", Name: "Ben Baker", Email: "ben@rise.test"},
		Outsider:     models.User{Auth0ID: "auth0|outsider", Name: "Ola Outsider", Email: "ola@crumb.test"},
	}
	mustCreate(t, db, &b.Company)
	mustCreate(t, db, &b.OtherCompany)
	mustCreate(t, db, &b.Owner)
	mustCreate(t, db, &b.Baker)
	mustCreate(t, db, &b.Outsider)

	b.OwnerMember = models.Membership{CompanyID: b.Company.ID, UserID: b.Owner.ID, Role: "owner"}
	b.BakerMember = models.Membership{CompanyID: b.Company.ID, UserID: b.Baker.ID, Role: "staff"}
	b.OtherMember = models.Membership{CompanyID: b.OtherCompany.ID, UserID: b.Outsider.ID, Role: "owner"}
	mustCreate(t, db, &b.OwnerMember)
	mustCreate(t, db, &b.BakerMember)
	mustCreate(t, db, &b.OtherMember)

	b.Croissant = models.Recipe{CompanyID: b.Company.ID, Name: "Croissant", YieldQuantity: decimal.NewFromInt(24), YieldUnit: "pieces"}
	b.Sourdough = models.Recipe{CompanyID: b.Company.ID, Name: "Sourdough", YieldQuantity: decimal.NewFromInt(12), YieldUnit: "loaves"}
	mustCreate(t, db, &b.Croissant)
	mustCreate(t, db, &b.Sourdough)

	b.Cafe = models.WholesaleCustomer{CompanyID: b.Company.ID, Name: "Corner Cafe"}
	b.Hotel = models.WholesaleCustomer{CompanyID: b.Company.ID, Name: "Grand Hotel"}
	mustCreate(t, db, &b.Cafe)
	mustCreate(t, db, &b.Hotel)

	return b
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("Failed to seed %T: %v", value, err)
	}
}
