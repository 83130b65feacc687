package services

import (
	"context"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/kendall-kelly/production-planner-api/config"
	"github.com/kendall-kelly/production-planner-api/models"
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

	// every connection to :memory: is a separate database
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

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// recordingSink keeps published events in memory
type recordingSink struct {
	mu     sync.Mutex
	events []DomainEvent
	err    error
}

func (s *recordingSink) Publish(ctx context.Context, event DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

// fixture is a bakery with two recipes, two wholesale customers and two
// staff members, plus a second company used for isolation checks.
type fixture struct {
	company      models.Company
	otherCompany models.Company
	owner        models.User
	baker        models.User
	ownerMember  models.Membership
	bakerMember  models.Membership
	otherMember  models.Membership
	sourdough    models.Recipe
	croissant    models.Recipe
	otherRecipe  models.Recipe
	cafe         models.WholesaleCustomer
	hotel        models.WholesaleCustomer
	otherClient  models.WholesaleCustomer
}

func seedFixture(t *testing.T, db *gorm.DB) *fixture {
	f := &fixture{
		company:      models.Company{Name: "Rise Bakery"},
		otherCompany: models.Company{Name: "Crumb Co"},
		owner:        models.User{Auth0ID: "auth0|owner", Name: "Olive Owner", Email: "olive@rise.test"},
		baker:        models.User{Auth0ID: "auth0|baker", Name: "Ben Baker", Email: "ben@rise.test"},
	}
	mustCreate(t, db, &f.company)
	mustCreate(t, db, &f.otherCompany)
	mustCreate(t, db, &f.owner)
	mustCreate(t, db, &f.baker)

	outsider := models.User{Auth0ID: "auth0|outsider", Name: "Ola Outsider", Email: "ola@crumb.test"}
	mustCreate(t, db, &outsider)

	f.ownerMember = models.Membership{CompanyID: f.company.ID, UserID: f.owner.ID, Role: "owner"}
	f.bakerMember = models.Membership{CompanyID: f.company.ID, UserID: f.baker.ID, Role: "staff"}
	f.otherMember = models.Membership{CompanyID: f.otherCompany.ID, UserID: outsider.ID, Role: "staff"}
	mustCreate(t, db, &f.ownerMember)
	mustCreate(t, db, &f.bakerMember)
	mustCreate(t, db, &f.otherMember)

	f.sourdough = models.Recipe{CompanyID: f.company.ID, Name: "Sourdough", YieldQuantity: decimal.NewFromInt(12), YieldUnit: "loaves"}
	f.croissant = models.Recipe{CompanyID: f.company.ID, Name: "Croissant", YieldQuantity: decimal.NewFromInt(24), YieldUnit: "pieces"}
	f.otherRecipe = models.Recipe{CompanyID: f.otherCompany.ID, Name: "Bagel", YieldQuantity: decimal.NewFromInt(10), YieldUnit: "pieces"}
	mustCreate(t, db, &f.sourdough)
	mustCreate(t, db, &f.croissant)
	mustCreate(t, db, &f.otherRecipe)

	f.cafe = models.WholesaleCustomer{CompanyID: f.company.ID, Name: "Corner Cafe"}
	f.hotel = models.WholesaleCustomer{CompanyID: f.company.ID, Name: "Grand Hotel"}
	f.otherClient = models.WholesaleCustomer{CompanyID: f.otherCompany.ID, Name: "Diner"}
	mustCreate(t, db, &f.cafe)
	mustCreate(t, db, &f.hotel)
	mustCreate(t, db, &f.otherClient)

	return f
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("Failed to seed %T: %v", value, err)
	}
}

// testEnv wires the services against a seeded in-memory database
type testEnv struct {
	db   *gorm.DB
	sink *recordingSink
	svcs *Services
	f    *fixture
}

func newTestEnv(t *testing.T) *testEnv {
	db := setupTestDB(t)
	sink := &recordingSink{}
	return &testEnv{
		db:   db,
		sink: sink,
		svcs: Build(db, NewGormDirectory(db), sink, NoopLocker{}, testLogger()),
		f:    seedFixture(t, db),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func uintPtr(v uint) *uint {
	return &v
}

func strPtr(s string) *string {
	return &s
}

func intPtr(v int) *int {
	return &v
}

func mustDate(s string) time.Time {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
