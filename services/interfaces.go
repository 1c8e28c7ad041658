package services

import (
	"context"

	"github.com/mbocsi/kiosk/proto"
	"github.com/mbocsi/kiosk/transport"
)

// Dispatcher is the part of transport.Dispatcher the services need
type Dispatcher interface {
	SendWithReceipt(ctx context.Context, ep proto.Endpoint, cmd proto.Command) (transport.Receipt, error)
	Meta() transport.HandleMetadata
}

// Publisher fans events out to live feed subscribers
type Publisher interface {
	PublishPayload(topic string, payload any) error
}

// BrowseFunc looks for playback devices on the local network
type BrowseFunc func(ctx context.Context) ([]DeviceInfo, error)

// KioskService handles the visitor-facing actions
type KioskService interface {
	// Catalog
	ListArtisans() ([]ArtisanInfo, error)
	GetArtisan(id string) (*ArtisanInfo, error)
	ListQuestions(artisanID string) ([]proto.Question, error)

	// Dispatch
	PlayMedia(ctx context.Context, artisanID, kind string) (*DispatchResult, error)
	AskQuestion(ctx context.Context, artisanID, key string) (*DispatchResult, error)
	SendRaw(ctx context.Context, command string) (*DispatchResult, error)
}

// SettingsService handles the playback device endpoint
type SettingsService interface {
	GetEndpoint() (proto.Endpoint, error)
	UpdateEndpoint(ep proto.Endpoint) error
	Discover(ctx context.Context) ([]DeviceInfo, error)
}

// MaintenanceService handles the hidden trigger and unlocked sessions
type MaintenanceService interface {
	Tap() TapResult
	Unlock(password string) (*Session, error)
	Authorize(token string) error
	Lock(token string) error
}

type StatusService interface {
	GetStatus() (*StatusInfo, error)
}

// ServiceContainer holds all service implementations
type ServiceContainer struct {
	Kiosk       KioskService
	Settings    SettingsService
	Maintenance MaintenanceService
	Status      StatusService
}
