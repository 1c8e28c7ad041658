package services

import (
	"time"

	"github.com/mbocsi/kiosk/catalog"
	"github.com/mbocsi/kiosk/proto"
	"github.com/mbocsi/kiosk/settings"
)

// Dependencies are what the service layer is built from
type Dependencies struct {
	Catalog     *catalog.Catalog
	Store       settings.Store
	Defaults    proto.Endpoint
	Dispatcher  Dispatcher
	Publisher   Publisher
	Browse      BrowseFunc
	Maintenance MaintenanceConfig
	Clock       func() time.Time
}

// ServiceManagerImpl manages all services with dependency injection
type ServiceManagerImpl struct {
	deps     Dependencies
	services *ServiceContainer
}

// NewServiceManager creates a new service manager
func NewServiceManager(deps Dependencies) (*ServiceManagerImpl, error) {
	maintenance, err := NewMaintenanceService(deps.Maintenance, deps.Publisher, deps.Clock)
	if err != nil {
		return nil, err
	}

	sm := &ServiceManagerImpl{deps: deps}
	sm.services = &ServiceContainer{
		Kiosk:       NewKioskService(deps.Catalog, deps.Store, deps.Defaults, deps.Dispatcher, deps.Publisher),
		Settings:    NewSettingsService(deps.Store, deps.Defaults, deps.Publisher, deps.Browse),
		Maintenance: maintenance,
		Status:      NewStatusService(deps.Catalog, deps.Store, deps.Defaults, deps.Dispatcher),
	}
	return sm, nil
}

// GetServices returns the service container
func (sm *ServiceManagerImpl) GetServices() *ServiceContainer {
	return sm.services
}
