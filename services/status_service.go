package services

import (
	"time"

	"github.com/mbocsi/kiosk/catalog"
	"github.com/mbocsi/kiosk/proto"
	"github.com/mbocsi/kiosk/settings"
)

// StatusServiceImpl implements StatusService
type StatusServiceImpl struct {
	catalog    *catalog.Catalog
	store      settings.Store
	defaults   proto.Endpoint
	dispatcher Dispatcher
	started    time.Time
}

func NewStatusService(c *catalog.Catalog, store settings.Store, defaults proto.Endpoint, d Dispatcher) StatusService {
	return &StatusServiceImpl{
		catalog:    c,
		store:      store,
		defaults:   defaults,
		dispatcher: d,
		started:    time.Now(),
	}
}

func (ss *StatusServiceImpl) GetStatus() (*StatusInfo, error) {
	return &StatusInfo{
		Endpoint: settings.Endpoint(ss.store, ss.defaults),
		Handle:   convertHandleMeta(ss.dispatcher.Meta()),
		Artisans: ss.catalog.Len(),
		Commands: len(ss.catalog.Commands()),
		Uptime:   time.Since(ss.started).Round(time.Second).String(),
	}, nil
}
