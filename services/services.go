package services

import (
	"github.com/kendall-kelly/production-planner-api/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Services bundles the planning services with their shared collaborators
type Services struct {
	Plans       *PlanService
	Orders      *OrderService
	Recurrence  *RecurringOrderGenerator
	Assignments *AssignmentService
	Sync        *OrderSynchronizer
	Outbox      *Outbox
	Resolver    CompanyResolver
}

// Build wires the services together and registers the outbox handlers
func Build(db *gorm.DB, directory Directory, sink EventSink, locker Locker, logger *logrus.Logger) *Services {
	outbox := NewOutbox(db, sink, logger)
	sync := NewOrderSynchronizer(db, sink, logger)
	outbox.Handle(models.EventPlanSaved, sync.HandlePlanSaved)

	orders := NewOrderService(db, directory, logger)
	return &Services{
		Plans:       NewPlanService(db, directory, outbox, logger),
		Orders:      orders,
		Recurrence:  NewRecurringOrderGenerator(db, orders, outbox, locker, logger),
		Assignments: NewAssignmentService(db, directory, logger),
		Sync:        sync,
		Outbox:      outbox,
		Resolver:    NewMembershipResolver(db),
	}
}

var servicesInstance *Services

// GetServices returns the services built at startup
func GetServices() *Services {
	return servicesInstance
}

// SetServices sets the services instance (also used by tests)
func SetServices(s *Services) {
	servicesInstance = s
}
