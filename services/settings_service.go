package services

import (
	"context"
	"time"

	"github.com/mbocsi/kiosk/proto"
	"github.com/mbocsi/kiosk/settings"
)

// SettingsServiceImpl implements SettingsService
type SettingsServiceImpl struct {
	store     settings.Store
	defaults  proto.Endpoint
	publisher Publisher
	browse    BrowseFunc
}

// NewSettingsService creates a new settings service. browse may be nil when
// discovery is disabled.
func NewSettingsService(store settings.Store, defaults proto.Endpoint, p Publisher, browse BrowseFunc) SettingsService {
	return &SettingsServiceImpl{
		store:     store,
		defaults:  defaults,
		publisher: p,
		browse:    browse,
	}
}

func (ss *SettingsServiceImpl) GetEndpoint() (proto.Endpoint, error) {
	return settings.Endpoint(ss.store, ss.defaults), nil
}

// UpdateEndpoint validates and persists a new endpoint. The next send picks
// it up; no socket is touched here.
func (ss *SettingsServiceImpl) UpdateEndpoint(ep proto.Endpoint) error {
	if err := ep.Validate(); err != nil {
		return ServiceError{
			Code:    ErrCodeInvalidInput,
			Message: err.Error(),
		}
	}
	if err := settings.SaveEndpoint(ss.store, ep); err != nil {
		return ServiceError{
			Code:    ErrCodeInternal,
			Message: "Failed to save configuration",
			Cause:   err,
		}
	}

	publish(ss.publisher, proto.TopicSettings, proto.SettingsEvent{
		Endpoint:  ep,
		Timestamp: time.Now().Unix(),
	})
	return nil
}

func (ss *SettingsServiceImpl) Discover(ctx context.Context) ([]DeviceInfo, error) {
	if ss.browse == nil {
		return nil, ServiceError{
			Code:    ErrCodeUnavailable,
			Message: "Discovery is disabled",
		}
	}
	devices, err := ss.browse(ctx)
	if err != nil {
		return nil, ServiceError{
			Code:    ErrCodeUnavailable,
			Message: "Discovery failed",
			Cause:   err,
		}
	}
	return devices, nil
}
